package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/stencil-be/internal/api/handlers"
	mw "github.com/isdelr/stencil-be/internal/api/middleware"
	"github.com/isdelr/stencil-be/internal/api/respond"
	"github.com/isdelr/stencil-be/internal/metrics"
	"github.com/isdelr/stencil-be/internal/services"
	"github.com/isdelr/stencil-be/internal/websocket"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Logger    zerolog.Logger
	Tokens    mw.TokenVerifier
	Auth      services.AuthServiceProvider
	Templates services.TemplateServiceProvider
	Events    services.EventServiceProvider
	Hub       *websocket.Hub
	DB        handlers.Pinger

	// Metrics records request and auth metrics; MetricsHandler serves them.
	// Both may be nil.
	Metrics        metrics.Recorder
	MetricsHandler http.Handler

	// AuthLimiter throttles signin and password reset per client IP. May be
	// nil.
	AuthLimiter *mw.RateLimiter

	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	rec := d.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	limit := func(flow string) func(http.Handler) http.Handler {
		if d.AuthLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return d.AuthLimiter.Middleware(flow, rec)
	}

	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(d.Logger))
	r.Use(mw.Instrument(rec))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Fail(w, http.StatusNotFound, respond.CodeNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	// Initialize handlers
	systemHandler := handlers.NewSystemHandler(d.DB)
	userHandler := handlers.NewUserHandler(d.Auth, rec)
	templateHandler := handlers.NewTemplateHandler(d.Templates)
	eventHandler := handlers.NewEventHandler(d.Events)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.AllowedOrigins)

	optional := mw.OptionalAuth(d.Tokens)
	required := mw.RequireAuth(d.Tokens)

	r.Get("/", systemHandler.Welcome)
	r.Get("/healthz", systemHandler.Health)
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", userHandler.Signup)
		r.With(limit("signin")).Post("/signin", userHandler.Signin)
		r.With(limit("reset_request")).Post("/reset-password", userHandler.RequestPasswordReset)
		r.With(limit("reset_confirm")).Post("/reset-password/confirm", userHandler.ConfirmPasswordReset)
		r.With(required).Get("/me", userHandler.GetMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(mw.WebSocketAuth(d.Tokens)).Get("/ws", wsHandler.Serve)
		r.With(required).Get("/events", eventHandler.GetRecent)

		r.Route("/templates", func(r chi.Router) {
			r.With(optional).Post("/", templateHandler.Create)
			r.Get("/", templateHandler.ListPublic)
			r.With(required).Get("/me", templateHandler.ListMine)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(optional)
				r.Get("/", templateHandler.Get)
				r.Put("/", templateHandler.Update)
				r.Delete("/", templateHandler.Delete)
			})
		})
	})

	return r
}
