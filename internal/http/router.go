package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turfconnect/slot-reservations/internal/observability"
	"github.com/turfconnect/slot-reservations/internal/rateLimit"
)

func NewRouter(h *Handlers, rl *rateLimit.RateLimiter, logger observability.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(IdentityMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/venues/{venueID}/slots", func(r chi.Router) {
			r.Get("/", h.ListSlots)
			r.Post("/", h.CreateSlot)
			r.Post("/generate/preview", h.GeneratePreview)
			r.Post("/generate/confirm", h.GenerateConfirm)
		})
		r.Patch("/slots/{slotID}", h.UpdateSlot)
		r.Delete("/slots/{slotID}", h.DeleteSlot)

		r.Post("/holds", h.CreateHold)

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/active", h.ActiveBooking)
			r.Get("/{bookingID}", h.GetBooking)
			r.Post("/{bookingID}/payments", h.ProcessPayment)
			r.Post("/{bookingID}/cancel", h.CancelBooking)
		})
	})

	return r
}
