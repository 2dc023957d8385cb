package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"owners-billing/internal/core"
)

// ownedInvoice loads the invoice by {uuid} and enforces ownership scoping.
func (h *Handler) ownedInvoice(w http.ResponseWriter, r *http.Request) (*core.Invoice, bool) {
	claims := authFromContext(r.Context())

	inv, err := h.invoices.GetInvoiceByUUID(r.Context(), invoiceUUID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	if inv.OwnershipID != claims.OwnershipID {
		writeError(w, r, "invoice not found", "NOT_FOUND", http.StatusNotFound)
		return nil, false
	}
	return inv, true
}

// listInvoices handles GET /api/invoices with optional status, contract_id and
// limit query filters.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	filter := core.InvoiceFilter{OwnershipID: claims.OwnershipID, Limit: 100}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := core.ParseInvoiceStatus(raw)
		if err != nil {
			writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("contract_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "invalid contract_id", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.ContractID = &id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}

	invoices, err := h.invoices.ListInvoices(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"invoices": invoices})
}

// getInvoice handles GET /api/invoices/{uuid}.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, inv)
}

type createInvoiceRequest struct {
	ContractUUID string           `json:"contract_uuid,omitempty"`
	PeriodStart  string           `json:"period_start"`
	PeriodEnd    string           `json:"period_end"`
	Due          string           `json:"due,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Tax          *decimal.Decimal `json:"tax,omitempty"`
	TaxRate      *decimal.Decimal `json:"tax_rate,omitempty"`
	Status       string           `json:"status,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

func parseDate(w http.ResponseWriter, r *http.Request, name, raw string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeError(w, r, "invalid "+name+", expected YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

// createInvoice handles POST /api/invoices. With contract_uuid the invoice is
// contract-linked; without, standalone under the caller's ownership.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req createInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start, ok := parseDate(w, r, "period_start", req.PeriodStart)
	if !ok {
		return
	}
	end, ok := parseDate(w, r, "period_end", req.PeriodEnd)
	if !ok {
		return
	}

	input := core.CreateInvoiceInput{
		OwnershipID: claims.OwnershipID,
		PeriodStart: start,
		PeriodEnd:   end,
		Amount:      req.Amount,
		Tax:         req.Tax,
		TaxRate:     req.TaxRate,
		Notes:       req.Notes,
		CreatedBy:   &claims.UserID,
	}
	if req.Due != "" {
		due, ok := parseDate(w, r, "due", req.Due)
		if !ok {
			return
		}
		input.Due = &due
	}
	if req.Status != "" {
		status, err := core.ParseInvoiceStatus(req.Status)
		if err != nil {
			writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		input.Status = status
	}

	if req.ContractUUID != "" {
		c, err := h.contracts.GetContractByUUID(r.Context(), req.ContractUUID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if c.OwnershipID != claims.OwnershipID {
			writeError(w, r, "contract not found", "NOT_FOUND", http.StatusNotFound)
			return
		}
		input.ContractID = &c.ID
	}

	inv, err := h.invoices.CreateInvoice(r.Context(), input, claims)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

type updateInvoiceRequest struct {
	PeriodStart *string          `json:"period_start,omitempty"`
	PeriodEnd   *string          `json:"period_end,omitempty"`
	Due         *string          `json:"due,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Tax         *decimal.Decimal `json:"tax,omitempty"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	ClearTax    bool             `json:"clear_tax,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

type updateInvoiceResponse struct {
	Invoice *core.Invoice    `json:"invoice"`
	Outcome core.EditOutcome `json:"outcome"`
}

// updateInvoice handles PATCH /api/invoices/{uuid}. Absent fields stay
// untouched; the edit is authorized against the invoice's status, the caller's
// capabilities, and the ownership settings.
func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}

	var req updateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	changes := core.InvoiceChanges{
		Amount:     req.Amount,
		Tax:        req.Tax,
		TaxRate:    req.TaxRate,
		ClearTax:   req.ClearTax,
		Notes:      req.Notes,
		EditReason: req.Reason,
	}
	for _, f := range []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"period_start", req.PeriodStart, &changes.PeriodStart},
		{"period_end", req.PeriodEnd, &changes.PeriodEnd},
		{"due", req.Due, &changes.Due},
	} {
		if f.raw == nil {
			continue
		}
		t, ok := parseDate(w, r, f.name, *f.raw)
		if !ok {
			return
		}
		*f.dst = &t
	}

	updated, outcome, err := h.invoices.UpdateInvoice(r.Context(), inv.ID, changes, claims, &claims.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, updateInvoiceResponse{Invoice: updated, Outcome: outcome})
}

// deleteInvoice handles DELETE /api/invoices/{uuid}.
func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}

	if err := h.invoices.DeleteInvoice(r.Context(), inv.ID, claims); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateStatus handles POST /api/invoices/{uuid}/status.
func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := core.ParseInvoiceStatus(req.Status)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	updated, err := h.invoices.UpdateStatus(r.Context(), inv.ID, status, req.Reason, &claims.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

// sendInvoice handles POST /api/invoices/{uuid}/send.
func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}

	updated, err := h.invoices.MarkAsSent(r.Context(), inv.ID, &claims.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

// payInvoice handles POST /api/invoices/{uuid}/pay.
func (h *Handler) payInvoice(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}

	updated, err := h.invoices.MarkAsPaid(r.Context(), inv.ID, &claims.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

// statusLogs handles GET /api/invoices/{uuid}/logs.
func (h *Handler) statusLogs(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.ownedInvoice(w, r)
	if !ok {
		return
	}

	logs, err := h.invoices.StatusLogs(r.Context(), inv.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}
