package web

import (
	"net/http"
)

// runGeneration handles POST /api/jobs/generate, triggering one generation
// sweep on demand. The sweep covers every ownership whose settings allow
// system generation, not just the caller's.
func (h *Handler) runGeneration(w http.ResponseWriter, r *http.Request) {
	result, err := h.generator.Run(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// runOverdueCheck handles POST /api/jobs/check-overdue.
func (h *Handler) runOverdueCheck(w http.ResponseWriter, r *http.Request) {
	marked, err := h.overdue.Run(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"marked_overdue": marked})
}
