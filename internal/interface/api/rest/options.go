package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MiddlewareFunc is a chi-compatible middleware.
type MiddlewareFunc func(next http.Handler) http.Handler

// ChiServerOptions configure controller registration.
type ChiServerOptions struct {
	BaseRouter  chi.Router
	BaseURL     string
	Middlewares []MiddlewareFunc
}
