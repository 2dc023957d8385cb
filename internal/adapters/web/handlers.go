package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"owners-billing/internal/core"
)

// Handler wires the billing services into the chi router.
type Handler struct {
	contracts core.ContractService
	invoices  core.InvoiceService
	settings  core.SettingsService
	generator *core.Generator
	overdue   *core.OverdueChecker
	jwtSecret string
	logger    zerolog.Logger
	router    chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(
	contracts core.ContractService,
	invoices core.InvoiceService,
	settings core.SettingsService,
	generator *core.Generator,
	overdue *core.OverdueChecker,
	jwtSecret string,
	logger zerolog.Logger,
) http.Handler {
	h := &Handler{
		contracts: contracts,
		invoices:  invoices,
		settings:  settings,
		generator: generator,
		overdue:   overdue,
		jwtSecret: jwtSecret,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/contracts/{uuid}", h.getContract)
		r.Get("/api/contracts/{uuid}/next-period", h.nextPeriod)

		r.Get("/api/invoices", h.listInvoices)
		r.Post("/api/invoices", h.createInvoice)
		r.Get("/api/invoices/{uuid}", h.getInvoice)
		r.Patch("/api/invoices/{uuid}", h.updateInvoice)
		r.Delete("/api/invoices/{uuid}", h.deleteInvoice)
		r.Post("/api/invoices/{uuid}/status", h.updateStatus)
		r.Post("/api/invoices/{uuid}/send", h.sendInvoice)
		r.Post("/api/invoices/{uuid}/pay", h.payInvoice)
		r.Get("/api/invoices/{uuid}/logs", h.statusLogs)

		r.Post("/api/jobs/generate", h.runGeneration)
		r.Post("/api/jobs/check-overdue", h.runOverdueCheck)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// decodeJSON decodes the request body into v, writing an appropriate error
// response on failure. Returns HTTP 413 when the body exceeds the limit set by
// RequestBodyLimit; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// invoiceUUID extracts the {uuid} URL parameter.
func invoiceUUID(r *http.Request) string {
	return chi.URLParam(r, "uuid")
}
