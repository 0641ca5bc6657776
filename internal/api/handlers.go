package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/api/middleware"
	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/auth"
	"github.com/example/ec-order-engine/internal/command"
	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
	"github.com/example/ec-order-engine/internal/query"
)

type TokenIssuer interface {
	Issue(subject, email, role string) (string, time.Time, error)
}

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	tokens       TokenIssuer
	log          logrus.FieldLogger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, tokens TokenIssuer, log logrus.FieldLogger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		tokens:       tokens,
		log:          log.WithField("component", "api"),
	}
}

// Responses

type OrderResponse struct {
	ID                 string      `json:"id"`
	CustomerID         string      `json:"customer_id"`
	Status             string      `json:"status"`
	Total              string      `json:"total"`
	Items              []ItemBrief `json:"items"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	Version            int         `json:"version"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type ItemBrief struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

func newOrderResponse(o *order.Order) OrderResponse {
	items := make([]ItemBrief, 0, o.ItemCount())
	for _, item := range o.Items() {
		items = append(items, ItemBrief{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal().String(),
		})
	}
	return OrderResponse{
		ID:                 o.ID(),
		CustomerID:         o.CustomerID(),
		Status:             o.Status().String(),
		Total:              o.Total().String(),
		Items:              items,
		CancellationReason: o.CancellationReason(),
		Version:            o.Version(),
		UpdatedAt:          o.UpdatedAt(),
	}
}

type ProductResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	LowStock      bool   `json:"low_stock"`
}

func newProductResponse(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID(),
		Name:          p.Name(),
		SKU:           p.SKU(),
		Price:         p.Price().String(),
		StockQuantity: p.StockQuantity(),
		LowStock:      p.IsLowStock(),
	}
}

type CustomerResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func newCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID(), Email: c.Email(), Name: c.FullName(), CreatedAt: c.CreatedAt()}
}

type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Customer    CustomerResponse `json:"customer"`
}

// Customer Handlers

func (h *Handlers) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var cmd command.RegisterCustomer
	if !h.decode(w, r, &cmd) {
		return
	}

	c, err := h.cmdHandler.RegisterCustomer(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCustomerResponse(c))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var cmd command.Authenticate
	if !h.decode(w, r, &cmd) {
		return
	}

	c, err := h.cmdHandler.Authenticate(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	token, expiresAt, err := h.tokens.Issue(c.ID(), c.Email(), auth.RoleCustomer)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, ExpiresAt: expiresAt, Customer: newCustomerResponse(c)})
}

func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canActFor(r, id) {
		h.respondError(w, r, apperr.NotFound(apperr.KindCustomer, id))
		return
	}

	c, err := h.queryHandler.GetCustomer(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canActFor(r, id) {
		h.respondError(w, r, apperr.NotFound(apperr.KindCustomer, id))
		return
	}

	orders, err := h.queryHandler.ListCustomerOrders(r.Context(), id, limitParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Product Handlers

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProduct
	if !h.decode(w, r, &cmd) {
		return
	}

	p, err := h.cmdHandler.CreateProduct(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newProductResponse(p))
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListProducts(r.Context(), limitParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.queryHandler.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Order Handlers

// PlaceOrder places on behalf of the caller; operators may name any customer.
func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.PlaceOrder
	if !h.decode(w, r, &cmd) {
		return
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && !claims.IsOperator() {
		cmd.CustomerID = claims.Subject
	}

	o, err := h.cmdHandler.PlaceOrder(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newOrderResponse(o))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.queryHandler.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !canActFor(r, o.CustomerID) {
		h.respondError(w, r, apperr.NotFound(apperr.KindOrder, id))
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	cmd := command.CancelOrder{OrderID: chi.URLParam(r, "id"), Reason: req.Reason}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && !claims.IsOperator() {
		cmd.CustomerID = claims.Subject
	}

	o, err := h.cmdHandler.CancelOrder(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), command.UpdateOrderStatus{
		OrderID:   chi.URLParam(r, "id"),
		NewStatus: req.Status,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderResponse(o))
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func limitParam(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func canActFor(r *http.Request, customerID string) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	return ok && claims.CanActFor(customerID)
}
