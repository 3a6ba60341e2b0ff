package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/egannguyen/instaprint/internal/location"
	"github.com/egannguyen/instaprint/internal/mailer"
	"github.com/egannguyen/instaprint/internal/service"
	"github.com/egannguyen/instaprint/internal/shoporders"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the application.
type Handler struct {
	checkout  *service.CheckoutService
	pricing   *service.PricingService
	locations *location.Service
	sessions  *shoporders.Registry
	mailer    *mailer.Service
}

// NewHandler wires the services; mail may be nil when email is not configured.
func NewHandler(
	checkout *service.CheckoutService,
	pricing *service.PricingService,
	locations *location.Service,
	sessions *shoporders.Registry,
	mail *mailer.Service,
) *Handler {
	return &Handler{
		checkout:  checkout,
		pricing:   pricing,
		locations: locations,
		sessions:  sessions,
		mailer:    mail,
	}
}

// NewRouter builds the HTTP surface.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(EnableCORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/shops/{shopID}", func(r chi.Router) {
			r.Get("/quote", h.handleQuote)
			r.Get("/pricing", h.handleListPricing)
			r.Put("/pricing", h.handleSavePricing)
			r.Delete("/pricing/{entryID}", h.handleDeletePricing)
			r.Put("/location", h.handleUpdateLocation)
		})

		r.Post("/orders", h.handleCreateOrder)
		r.Route("/orders/{orderID}/payment", func(r chi.Router) {
			r.Post("/manual", h.handleManualPayment)
			r.Post("/widget", h.handleWidgetPayment)
			r.Get("/qr", h.handlePaymentQR)
		})

		r.Route("/operator/sessions", func(r chi.Router) {
			r.Post("/", h.handleOpenSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Delete("/", h.handleCloseSession)
				r.Get("/orders", h.handleSessionOrders)
				r.Post("/refresh", h.handleSessionRefresh)
				r.Post("/resume", h.handleSessionResume)
				r.Post("/retry", h.handleSessionRetry)
				r.Post("/orders/{orderID}/complete", h.handleCompleteOrder)
				r.Get("/orders/{orderID}/preview", h.handlePreviewOrder)
				r.Post("/orders/{orderID}/accept", h.handleAcceptOrder)
			})
		})
	})

	r.Post("/functions/send-order-completed-email", h.handleSendCompletedEmail)
	return r
}

// EnableCORS is a middleware to allow the React frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
