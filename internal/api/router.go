package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service        AppointmentService
	Resolver       CallerResolver
	Limiter        Limiter // optional
	Checks         []DependencyCheck
	Logger         *zap.Logger
	RequestTimeout time.Duration
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{
		svc:      cfg.Service,
		validate: newRequestValidator(),
		logger:   logger,
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Resolver))
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter, logger))
		}
		if cfg.RequestTimeout > 0 {
			r.Use(DeadlineMiddleware(cfg.RequestTimeout))
		}

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments/mine", h.list(cfg.Service.ListMine))
		r.Get("/appointments/student", h.list(cfg.Service.ListForStudent))
		r.Get("/appointments/mentor", h.list(cfg.Service.ListMentorRegular))
		r.Put("/appointments/{id}/status", h.updateStatus)

		r.Post("/emergency-appointments", h.createEmergency)
		r.Get("/emergency-appointments/pending", h.list(cfg.Service.ListPendingEmergencies))
		r.Put("/emergency-appointments/{id}/accept", h.acceptEmergency)
	})

	return otelhttp.NewHandler(r, "api-server")
}
