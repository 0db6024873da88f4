package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
)

// RouterConfig carries what NewRouter mounts.
type RouterConfig struct {
	Events      EventService
	Bookings    BookingService
	Activity    ActivityReader
	Audit       audit.Sink
	DB          Pinger
	CORSOrigins []string
}

// NewRouter builds the full HTTP surface with the global middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	eventHandler := NewEventHandler(cfg.Events)
	bookingHandler := NewBookingHandler(cfg.Bookings, cfg.Audit)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)                  // structured access log
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", HealthCheck(cfg.DB))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/events", func(r chi.Router) {
		r.Get("/", eventHandler.ListEvents)
		r.Get("/{id}", eventHandler.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(Identity, RequireAdmin)
			r.Post("/", eventHandler.CreateEvent)
			r.Patch("/{id}", eventHandler.UpdateEvent)
		})
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Use(Identity)
		r.Post("/", bookingHandler.CreateBooking)
		r.Get("/", bookingHandler.ListBookings)
		r.Get("/{id}", bookingHandler.GetBooking)
		r.Post("/{id}/cancel", bookingHandler.CancelBooking)
		if cfg.Activity != nil {
			r.With(RequireAdmin).Get("/{id}/activity", BookingActivity(cfg.Activity))
		}
	})

	return r
}
