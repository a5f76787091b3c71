package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/web/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(ctx context.Context, s *Server) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.ActorMiddleware)

	// Rate limiter for uploads (feeds and inventories)
	uploadLimiter := middleware.NewRateLimiter(ctx, 30, 1*time.Minute)
	limited := func(h http.HandlerFunc) http.Handler {
		return middleware.RateLimitMiddleware(uploadLimiter)(h)
	}

	api := r.PathPrefix("/api").Subrouter()

	// CVE store
	api.Handle("/cves", limited(s.CVEHandler.HandleIngest)).Methods(http.MethodPost)
	api.HandleFunc("/cves", s.CVEHandler.HandleClear).Methods(http.MethodDelete)
	api.HandleFunc("/cves", s.CVEHandler.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/cves/{id}", s.CVEHandler.HandleGet).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.CVEHandler.HandleStats).Methods(http.MethodGet)

	// Scans
	api.Handle("/scan", limited(s.ScanHandler.HandleScan)).Methods(http.MethodPost)
	api.HandleFunc("/scan/last", s.ScanHandler.HandleLast).Methods(http.MethodGet)
	api.HandleFunc("/scan/last/archive", s.ScanHandler.HandleArchiveLast).Methods(http.MethodPost)
	api.HandleFunc("/scans", s.ScanHandler.HandleListResults).Methods(http.MethodGet)
	api.HandleFunc("/scan-runs", s.ScanHandler.HandleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/export", s.ExportHandler.HandleExport).Methods(http.MethodGet)
	api.HandleFunc("/health", s.ScanHandler.HandleHealth).Methods(http.MethodGet)

	// Audit Logs
	if s.AuditHandler != nil {
		api.HandleFunc("/audit-logs", s.AuditHandler.HandleGetLogs).Methods(http.MethodGet)
	}

	// Plan progress push
	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
