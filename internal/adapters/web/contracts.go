package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"owners-billing/internal/core"
)

// getContract handles GET /api/contracts/{uuid}.
func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	c, err := h.contracts.GetContractByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if c.OwnershipID != claims.OwnershipID {
		writeError(w, r, "contract not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, c)
}

type nextPeriodResponse struct {
	FullyInvoiced bool   `json:"fully_invoiced"`
	PeriodStart   string `json:"period_start,omitempty"`
	PeriodEnd     string `json:"period_end,omitempty"`
	Due           string `json:"due,omitempty"`
	Amount        string `json:"amount,omitempty"`
}

// nextPeriod handles GET /api/contracts/{uuid}/next-period. It previews the
// next unbilled period and its amount without creating anything.
func (h *Handler) nextPeriod(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	c, err := h.contracts.GetContractByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if c.OwnershipID != claims.OwnershipID {
		writeError(w, r, "contract not found", "NOT_FOUND", http.StatusNotFound)
		return
	}

	settings, err := h.settings.BillingSettings(r.Context(), c.OwnershipID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	last, err := h.contracts.LastInvoice(r.Context(), c.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	period := core.NextPeriod(*c, last, settings)
	if period == nil {
		writeJSON(w, nextPeriodResponse{FullyInvoiced: true})
		return
	}

	amount := core.AmountForPeriod(*c, period.Period())
	writeJSON(w, nextPeriodResponse{
		PeriodStart: period.Start.Format(time.DateOnly),
		PeriodEnd:   period.End.Format(time.DateOnly),
		Due:         period.Due.Format(time.DateOnly),
		Amount:      amount.StringFixed(2),
	})
}
