package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/api/middleware"
	"github.com/example/ec-order-engine/internal/auth"
)

// NewRouter mounts the public catalog and account routes, the customer
// order routes and the operator-only routes.
func NewRouter(h *Handlers, tokens middleware.TokenVerifier, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/customers", h.RegisterCustomer)
	r.Post("/auth/login", h.Login)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens))

		r.Get("/customers/{id}", h.GetCustomer)
		r.Get("/customers/{id}/orders", h.ListCustomerOrders)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/orders/{id}/cancel", h.CancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleOperator))

			r.Post("/products", h.CreateProduct)
			r.Put("/orders/{id}/status", h.UpdateOrderStatus)
		})
	})

	return r
}
