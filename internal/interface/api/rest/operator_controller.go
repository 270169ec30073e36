package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/printmate/order-service/internal/auth"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/pkg/logger"
)

// OrderLister is the operator-facing slice of the order store.
type OrderLister interface {
	List(ctx context.Context) ([]*order.Order, error)
}

// OperatorController exposes the operator API: login and order audit.
type OperatorController struct {
	orders   OrderLister
	auth     *auth.Service
	validate *validator.Validate
	logger   logger.Logger
}

// NewOperatorController registers the operator handlers with additional options.
func NewOperatorController(
	orders OrderLister, authService *auth.Service, logger logger.Logger, options ChiServerOptions,
) {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := OperatorController{
		orders:   orders,
		auth:     authService,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post(options.BaseURL+"/login", c.Login)

	r.Group(func(r chi.Router) {
		r.Use(authService.Middleware)
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Get(options.BaseURL+"/orders", c.GetOrders)
	})
}

// Login authenticates the operator (POST /api/operator/login).
func (c *OperatorController) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}
	if err := c.validate.Struct(&req); err != nil {
		c.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidRequest, err))
		return
	}

	token, err := c.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	http.SetCookie(w, c.auth.Cookie(token))
	w.WriteHeader(http.StatusOK)
}

// GetOrders lists all orders (GET /api/operator/orders).
func (c *OperatorController) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := c.orders.List(r.Context())
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	// Convert entities to handler response representation.
	res := make([]*OrderView, len(orders))
	for i, o := range orders {
		res[i] = NewOrderViewFromOrder(o)
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(res); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *OperatorController) ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest):
		code = http.StatusBadRequest

	// Status Unauthorized (401).
	case errors.Is(err, errs.ErrInvalidCredentials):
		code = http.StatusUnauthorized

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	c.logger.Errorf("operator controller [%d]: %s", code, err)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
