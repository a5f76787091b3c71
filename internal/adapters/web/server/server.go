package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/adapters/reporting"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/web/handlers"
	ws "github.com/lcalzada-xor/zerotrace/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/scan"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services are the core components the HTTP API exposes.
// Runs, Planner, Audit and PDF may be nil.
type Services struct {
	Ingester ports.FeedIngester
	Repo     ports.CVERepository
	Scans    *scan.Service
	Runs     ports.ScanRunRepository
	Planner  ports.ActionPlanner
	Audit    ports.AuditService
	PDF      *reporting.PDFExporter
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	WSManager *ws.WSManager

	CVEHandler    *handlers.CVEHandler
	ScanHandler   *handlers.ScanHandler
	ExportHandler *handlers.ExportHandler
	AuditHandler  *handlers.AuditHandler
	srv           *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, svc Services) *Server {
	s := &Server{
		Addr:          addr,
		WSManager:     ws.NewWSManager(),
		CVEHandler:    handlers.NewCVEHandler(svc.Ingester, svc.Repo, svc.Audit),
		ScanHandler:   handlers.NewScanHandler(svc.Scans, svc.Repo, svc.Runs, svc.Planner),
		ExportHandler: handlers.NewExportHandler(svc.Scans.Session(), svc.PDF, svc.Audit),
	}
	if svc.Audit != nil {
		s.AuditHandler = handlers.NewAuditHandler(svc.Audit)
	}

	// Push plan progress and scan completion to websocket clients
	s.ScanHandler.Progress = s.WSManager.BroadcastProgress
	s.ScanHandler.OnComplete = func(report domain.ScanReport) {
		s.WSManager.BroadcastScanComplete(report.ScanID, report.Summary)
	}

	return s
}

// Handler builds the instrumented route tree. Background helpers stop with ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	return otelhttp.NewHandler(SetupRoutes(ctx, s), "zerotrace-server")
}

// Run starts the server and the websocket hub.
func (s *Server) Run(ctx context.Context) error {
	s.WSManager.Start(ctx)

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		log.Println("Web Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web Server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// BroadcastLog sends a log message to all connected clients
func (s *Server) BroadcastLog(message string, level string) {
	s.WSManager.BroadcastLog(message, level)
}
