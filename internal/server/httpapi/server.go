// Package httpapi exposes the registration and lookup services over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// netListen is a seam for tests.
var netListen = net.Listen

// Registrar is the write side used by the handlers.
type Registrar interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	RetryProfilePicture(ctx context.Context, userID string, picture []byte, contentType string) error
}

// Finder is the read side used by the handlers.
type Finder interface {
	GetByID(ctx context.Context, id string) (*models.PublicUser, error)
	GetProfilePicture(ctx context.Context, id string) (*models.ProfilePicture, error)
}

type HTTPServer struct {
	address         string
	registrar       Registrar
	finder          Finder
	maxPictureBytes int64
	logger          logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, r Registrar, f Finder, maxPictureBytes int64) *HTTPServer {
	return &HTTPServer{
		address:         a,
		registrar:       r,
		finder:          f,
		maxPictureBytes: maxPictureBytes,
		logger:          l.With("module", "http_server"),
	}
}

// Routes builds the router. It is exported for tests and for embedding.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Post("/register", s.register)
	r.Route("/user/{user_id}", func(r chi.Router) {
		r.Get("/", s.getUser)
		r.Get("/profile-picture", s.getProfilePicture)
		r.Put("/profile-picture", s.putProfilePicture)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := netListen("tcp", s.address)
	if err != nil {
		return err
	}

	// stops the shutdown goroutine when Serve fails on its own
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	err = srv.Serve(listen)
	cancel()
	<-stopped

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
