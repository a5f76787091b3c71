package handlers

import (
	"log"
	"net/http"

	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
)

// AuditHandler handles audit logging operations
type AuditHandler struct {
	Service ports.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{
		Service: service,
	}
}

// HandleGetLogs returns audit logs, newest first. ?limit=0 returns all of them.
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Service.GetLogs(r.Context(), parseLimit(r, defaultListLimit))
	if err != nil {
		log.Printf("Failed to fetch audit logs: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}
