package http

import (
	"net/http"

	"student-portal/http/handlers"
	"student-portal/metrics"
	"student-portal/telemetry"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
)

// NewRouter configures all HTTP routes and middleware.
func NewRouter(h *handlers.Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.TracingMiddleware)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Trace-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/profile", h.Profile)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/heads", h.PaymentHeads)
		r.Post("/initiate", h.InitiatePayment)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/navigate", h.NavigateSession)
			r.Post("/cancel", h.CancelSession)
		})

		r.Get("/{applicationId}/status", h.PaymentStatus)
		r.Get("/{applicationId}/instructions.pdf", h.InstructionsPDF)
	})

	// deep link callbacks: <scheme>://payment/<outcome>?applicationId=..
	r.Get("/payment/{outcome}", h.Callback)
	r.Post("/webhooks/razorpay", h.RazorpayWebhook)

	r.Get("/reports/attempts.xlsx", h.AttemptsReport)

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	return r
}
