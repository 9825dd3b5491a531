// Package server wires configuration, storage, services and the HTTP API
// into a runnable process.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/isdelr/stencil-be/internal/api"
	mw "github.com/isdelr/stencil-be/internal/api/middleware"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/config"
	"github.com/isdelr/stencil-be/internal/database"
	"github.com/isdelr/stencil-be/internal/mail"
	"github.com/isdelr/stencil-be/internal/metrics"
	"github.com/isdelr/stencil-be/internal/monitoring"
	"github.com/isdelr/stencil-be/internal/services"
	"github.com/isdelr/stencil-be/internal/store"
	"github.com/isdelr/stencil-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Server owns the HTTP server and the background workers it depends on.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	hub        *websocket.Hub
	scheduler  *monitoring.Scheduler
	limiter    *mw.RateLimiter
}

type options struct {
	mailer   mail.Mailer
	hashCost int
}

// Option customizes server construction.
type Option func(*options)

// WithMailer overrides the mailer chosen from configuration.
func WithMailer(m mail.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(o *options) { o.hashCost = cost }
}

// New opens and migrates the database and constructs every component.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.ResetTokenTTL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	mailer := o.mailer
	if mailer == nil {
		mailer = newMailer(cfg)
	}

	var userOpts []services.UserOption
	if o.hashCost > 0 {
		userOpts = append(userOpts, services.WithHashCost(o.hashCost))
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()

	// Set up services
	eventService := services.NewEventService(store.NewEventRepository(db))
	userService := services.NewUserService(store.NewUserRepository(db), userOpts...)
	authService := services.NewAuthService(userService, tokens, mailer, eventService, cfg.ResetURL)
	templateService := services.NewTemplateService(store.NewTemplateRepository(db), eventService, hub, services.TemplateOptions{
		DeleteRequiresOwner: cfg.DeleteRequiresOwner,
		DefaultLimit:        cfg.TemplatePageSize,
		MaxLimit:            cfg.TemplateMaxPageSize,
	})

	scheduler, err := monitoring.NewScheduler(eventService, cfg.EventRetention, cfg.EventPruneSchedule)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	limiter := mw.NewRateLimiter(cfg.AuthRateLimitPerMinute, 5*time.Minute)

	router := api.NewRouter(api.Deps{
		Logger:         log.Logger,
		Tokens:         tokens,
		Auth:           authService,
		Templates:      templateService,
		Events:         eventService,
		Hub:            hub,
		DB:             db,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		AuthLimiter:    limiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		db:        db,
		hub:       hub,
		scheduler: scheduler,
		limiter:   limiter,
	}, nil
}

func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("SMTP_HOST not set, password reset mails will only be logged")
		return mail.LogMailer{}
	}
	return mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
}

// Handler exposes the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)
	s.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopHub()
	s.scheduler.Stop(shutdownCtx)
	s.limiter.Stop()
	if err := s.db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}

	if serveErr != nil {
		return fmt.Errorf("listen and serve: %w", serveErr)
	}
	log.Info().Msg("Server exiting")
	return nil
}
