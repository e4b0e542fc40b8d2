// Package server exposes providers and appointments over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/gyeh/carenet/internal/appointment"
	"github.com/gyeh/carenet/internal/catalog"
	"github.com/gyeh/carenet/internal/metrics"
	"github.com/gyeh/carenet/internal/webhook"
)

// Options holds the server's collaborators. Webhook defaults to a processor
// over Store.
type Options struct {
	Catalog        catalog.Source
	Store          appointment.Store
	Webhook        *webhook.Processor
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// Server routes API requests to the catalog and appointment store.
type Server struct {
	catalog catalog.Source
	store   appointment.Store
	webhook *webhook.Processor
	logger  *slog.Logger
	metrics *metrics.Metrics
	router  chi.Router
}

// New builds the server and its routes.
func New(o Options) *Server {
	s := &Server{
		catalog: o.Catalog,
		store:   o.Store,
		webhook: o.Webhook,
		logger:  o.Logger,
		metrics: o.Metrics,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.webhook == nil {
		s.webhook = webhook.NewProcessor(o.Store, o.Logger)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})

	r := chi.NewRouter()
	r.Use(c.Handler)
	r.Use(s.instrument)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", s.health)
	r.Get("/providers", s.listProviders)
	r.Get("/providers/{id}", s.getProvider)
	r.Get("/appointments", s.listAppointments)
	r.Post("/appointments", s.createAppointment)
	r.Get("/appointments/{id}", s.getAppointment)
	r.Post("/webhook/elevenlabs", s.elevenLabsWebhook)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs srv until ctx is cancelled, then shuts it down,
// waiting at most shutdownTimeout for in-flight requests.
func ListenAndServe(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
