// Package http serves the expense form, the list and import views and
// the report downloads.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kakebo/internal/cache"
	"kakebo/internal/core"
	applog "kakebo/internal/log"
	"kakebo/internal/sheets"
	"kakebo/internal/storage"
	appweb "kakebo/web"
)

// Ledger is the slice of the storage layer the handlers use.
type Ledger interface {
	Create(ctx context.Context, tx core.Transaction) (int64, error)
	CreateBatch(ctx context.Context, txs []core.Transaction) ([]int64, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Update(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f storage.Filter) ([]core.Transaction, error)
	Snapshot(ctx context.Context) ([]core.Transaction, error)
	Version(ctx context.Context, id int64) (int64, error)
}

// SyncPublisher queues a ledger mutation for the mirror worker. Nil
// publisher means the deployment runs without a remote mirror.
type SyncPublisher interface {
	PublishLedgerSync(ctx context.Context, id int64, op string, version int64) error
}

type Server struct {
	http.Server
	templates *template.Template
	store     Ledger
	exporter  sheets.ReportExporter
	publisher SyncPublisher

	rateLimiter *rateLimiter

	// Rendered list partials keyed by filter; purged on every write.
	listCache *cache.LRU[string]

	sweepCancel  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. exporter and publisher may be nil.
func NewServer(addr string, store Ledger, exporter sheets.ReportExporter, publisher SyncPublisher) *Server {
	mux := http.NewServeMux()
	httpLogger := applog.New(applog.ComponentHTTP, slog.LevelInfo)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(httpLogger)(mux),
		},
		store:       store,
		exporter:    exporter,
		publisher:   publisher,
		rateLimiter: newRateLimiter(),
		listCache:   cache.NewLRU[string](100, 5*time.Minute),
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.listCache.StartSweeper(sweepCtx, 10*time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("POST /transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("POST /transactions/{id}", s.withSecurityHeaders(s.handleUpdateTransaction))
	mux.HandleFunc("POST /transactions/{id}/delete", s.withSecurityHeaders(s.handleDeleteTransaction))
	mux.HandleFunc("GET /ui/transactions", s.withSecurityHeaders(s.handleListTransactions))
	mux.HandleFunc("POST /import/preview", s.withSecurityHeaders(s.handleImportPreview))
	mux.HandleFunc("POST /import", s.withSecurityHeaders(s.handleImport))
	mux.HandleFunc("GET /report.csv", s.withSecurityHeaders(s.handleReportCSV))
	mux.HandleFunc("POST /report/export", s.withSecurityHeaders(s.handleReportExport))

	return s
}

// Shutdown stops the background routines along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.sweepCancel()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting and request
// logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		logger := applog.FromContext(ctx)
		logger.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Mutations are rate limited per client IP.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logger.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// publishSync queues the mutation for the mirror worker. Failures are
// logged, not surfaced: the pending scan picks the row up later.
func (s *Server) publishSync(ctx context.Context, id int64, op string) {
	if s.publisher == nil {
		return
	}
	version, err := s.store.Version(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read version for sync publish", "id", id, "error", err)
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, id, op, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "op", op, "error", err)
	}
}
