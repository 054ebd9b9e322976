package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"shortlet-payments/internal/config"
	"shortlet-payments/internal/infra/redis"
	"shortlet-payments/internal/usecase"
)

type Server struct {
	reconcileUC usecase.ReconcileUseCase
	payments    usecase.PaymentService
	probe       usecase.SchemaDetector
	dedup       redis.Deduper
	auth        *AuthManager

	cronSecret          string
	stripeWebhookSecret string
	paystackSecretKey   string
	adminAPIKey         string

	log *zerolog.Logger
}

func NewServer(
	reconcileUC usecase.ReconcileUseCase,
	payments usecase.PaymentService,
	probe usecase.SchemaDetector,
	dedup redis.Deduper,
	auth *AuthManager,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		reconcileUC:         reconcileUC,
		payments:            payments,
		probe:               probe,
		dedup:               dedup,
		auth:                auth,
		cronSecret:          cfg.Reconcile.CronSecret,
		stripeWebhookSecret: cfg.Providers.Stripe.WebhookSecret,
		paystackSecretKey:   cfg.Providers.Paystack.SecretKey,
		adminAPIKey:         cfg.Admin.APIKey,
		log:                 logger,
	}
}

// Handler builds the full route tree. The caller owns the http.Server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(60*time.Second))

	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cron/reconcile-payments", s.cronReconcileHandler)
		r.Post("/webhooks/stripe", s.stripeWebhookHandler)
		r.Post("/webhooks/paystack", s.paystackWebhookHandler)

		r.Post("/admin/login", s.adminLoginHandler)
		r.Post("/admin/logout", s.adminLogoutHandler)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/admin/payments/flagged", s.adminFlaggedHandler)
		})
	})
	return r
}

// requireAdmin guards the ops endpoints behind a valid session token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
