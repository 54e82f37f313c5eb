package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/model"
)

// Server timeouts
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	keepAliveInterval = 15 * time.Second
)

// Defaults fill in submission fields a client leaves empty
type Defaults struct {
	Quality        model.Quality
	DestinationDir string
	CookieFile     string
}

// Server holds the queue the handlers operate on
type Server struct {
	Manager  download.Manager
	Defaults Defaults
	Log      logrus.FieldLogger
}

// New creates a server for m
func New(m download.Manager, defaults Defaults, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{Manager: m, Defaults: defaults, Log: log}
}

// NewRouter builds the HTTP routes
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&logFormatter{log: srv.Log}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealth())
	r.Get("/events", srv.handleEvents())

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", srv.handleSubmit())
		r.Get("/", srv.handleListJobs())
		r.Delete("/", srv.handleClearTerminal())
		r.Post("/cancel", srv.handleCancelAll())

		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", srv.handleGetJob())
			r.Delete("/", srv.handleRemoveJob())
			r.Post("/cancel", srv.handleCancelJob())
			r.Post("/resubmit", srv.handleResubmitJob())
		})
	})

	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(s),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.WithField("listen", addr).Info("HTTP server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.Log.WithError(err).Warn("HTTP shutdown timed out")
		return httpSrv.Close()
	}
	return nil
}
