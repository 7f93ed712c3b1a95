package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/view"
)

// Dashboard is what the server needs from the view layer.
type Dashboard interface {
	Panel(name string) (view.Panel, bool)
	Panels() []string
	ListGoals(ctx context.Context) ([]core.Goal, error)
}

type Server struct {
	http.Server
	dashboard Dashboard
	renderer  *insightRenderer
	logger    *log.Logger

	ready              atomic.Bool
	suspiciousRequests int64
	heartbeat          time.Duration
	selectTimeout      time.Duration
	limiter            *selectLimiter

	baseCtx      context.Context
	cancelBase   context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server. Readiness
// stays false until SetReady is called.
func NewServer(addr string, d Dashboard, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		dashboard:     d,
		renderer:      newInsightRenderer(),
		logger:        logger.WithComponent(log.ComponentHTTP),
		heartbeat:     15 * time.Second,
		selectTimeout: 30 * time.Second,
		baseCtx:       baseCtx,
		cancelBase:    cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/goals", s.handleGoals)
	mux.HandleFunc("GET /api/views", s.handlePanels)
	mux.HandleFunc("GET /api/views/{panel}", s.handleView)
	mux.HandleFunc("GET /api/views/{panel}/events", s.handleEvents)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(logger)(s.withSecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

// LimitSelects caps panel reloads at perMinute per client. The returned
// cleaner forgets idle clients; register it with the cache janitor.
func (s *Server) LimitSelects(perMinute int) cache.Cleaner {
	s.limiter = newSelectLimiter(perMinute)
	return s.limiter
}

// SetReady flips the /readyz answer.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Shutdown ends open event streams and then shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.SetReady(false)
		s.cancelBase()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
