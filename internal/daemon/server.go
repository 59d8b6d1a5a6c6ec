// Package daemon serves the local HTTP ingest and report API. It is a
// producer: events posted by a host process on the same machine are passed
// to the recorder's emit function.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/config"
	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/producer"
	"github.com/runnerr0/testpilot/internal/report"
	"github.com/runnerr0/testpilot/internal/storage"
)

// The handler deadline sits inside the write deadline so a slow request
// still gets its 503 written.
const (
	requestTimeout = 25 * time.Second
	writeTimeout   = 30 * time.Second
)

// Server is the ingest daemon.
type Server struct {
	addr    string
	maxBody int64
	study   event.Study
	store   storage.Store
	reports *report.Service
	logger  *zap.Logger
	started time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
	serveErr error
}

func NewServer(cfg config.DaemonConfig, study event.Study, store storage.Store, reports *report.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := int64(cfg.MaxRequestSize)
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Server{
		addr:    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		maxBody: maxBody,
		study:   study,
		store:   store,
		reports: reports,
		logger:  logger,
	}
}

// Routes builds the router. Ingested events are passed to emit.
func (s *Server) Routes(emit producer.Emit) http.Handler {
	h := &handler{server: s, emit: emit}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Post("/events", h.ingestEvents)
		r.Get("/report", h.getReport)
		r.Get("/status", h.getStatus)
		r.Get("/health", h.getHealth)
	})

	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context, emit producer.Emit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("daemon already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.started = time.Now()
	s.listener = ln
	s.srv = &http.Server{
		Handler:      s.Routes(emit),
		WriteTimeout: writeTimeout,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}
	s.done = make(chan struct{})
	s.serveErr = nil

	go func(srv *http.Server, done chan struct{}) {
		err := srv.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			s.serveErr = err
		}
		close(done)
	}(s.srv, s.done)

	s.logger.Info("daemon has started", zap.String("addr", ln.Addr().String()), zap.String("study", s.study.String()))
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Done is closed when the server stops serving; nil before Start.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}
	<-done
	s.logger.Info("daemon has stopped", zap.String("addr", s.addr))
	return s.serveErr
}

// Err returns the error that ended serving, if any. Valid after Done.
func (s *Server) Err() error {
	return s.serveErr
}
