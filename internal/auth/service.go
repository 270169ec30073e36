package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/printmate/order-service/internal/config"
	"github.com/printmate/order-service/internal/jwt"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// Service authenticates the operator against the configured credential
// and guards the operator API with a JWT cookie.
type Service struct {
	logger logger.Logger
	config *config.Config
}

func NewService(cfg *config.Config, logger logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}
	return &Service{config: cfg, logger: logger}, nil
}

// Login verifies the operator credentials and returns an auth token.
func (s *Service) Login(_ context.Context, login, password string) (string, error) {
	if login != s.config.Auth.OperatorLogin {
		return "", fmt.Errorf("%w: unknown login", errs.ErrInvalidCredentials)
	}

	err := bcrypt.CompareHashAndPassword(
		[]byte(s.config.Auth.OperatorPasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", fmt.Errorf("%w: password", errs.ErrInvalidCredentials)
		}
		return "", fmt.Errorf("compare passwords: %w", err)
	}

	authToken, err := jwt.BuildString(login,
		s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	return authToken, nil
}

// Cookie wraps a token in the "Authorization" cookie.
func (s *Service) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     "Authorization",
		Value:    token,
		Expires:  time.Now().Add(s.config.JWT.Expiration),
		HttpOnly: true,
	}
}

// Middleware authorizes operator requests.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		authCookie, err := r.Cookie("Authorization")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if _, err = jwt.GetOperator(authCookie.Value, s.config.JWT.SigningKey); err != nil {
			s.logger.Infof("operator auth rejected: %s", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}
