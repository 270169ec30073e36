package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/pkg/logger"
)

// Maximum size of an uploaded artifact held in memory during
// multipart parsing.
const maxUploadMemory = 32 << 20

// OrderLifecycle is the controller-facing slice of the lifecycle service.
type OrderLifecycle interface {
	OnUpload(ctx context.Context, requesterID string, r io.Reader, filename string) (*order.Order, error)
	OnPaymentConfirmed(ctx context.Context, requesterID string, confirmedAmount int64) error
	OnPrecheckout(ctx context.Context, handle string) (bool, error)
}

// EventsController exposes the collaborator events as webhooks.
type EventsController struct {
	service  OrderLifecycle
	validate *validator.Validate
	logger   logger.Logger
}

// NewEventsController registers the event handlers with additional options.
func NewEventsController(
	service OrderLifecycle, logger logger.Logger, options ChiServerOptions,
) {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := EventsController{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/upload", c.Upload)
		r.Post(options.BaseURL+"/payment", c.PaymentConfirmed)
		r.Post(options.BaseURL+"/precheckout", c.Precheckout)
	})
}

// Upload handles an artifact-upload event (POST /api/events/upload).
func (c *EventsController) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		c.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidRequest, err))
		return
	}

	requesterID := r.FormValue("requester_id")
	if requesterID == "" {
		c.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidRequest,
			&errs.RequiredRequestParamError{ParamName: "requester_id"}))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		c.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidRequest,
			&errs.RequiredRequestParamError{ParamName: "file"}))
		return
	}
	defer file.Close()

	o, err := c.service.OnUpload(r.Context(), requesterID, file, header.Filename)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	if err = json.NewEncoder(w).Encode(NewUploadResponseFromOrder(o)); err != nil {
		c.logger.Errorf("encode upload response: %s", err)
	}
}

// PaymentConfirmed handles a payment-confirmation event
// (POST /api/events/payment).
func (c *EventsController) PaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var req PaymentConfirmedRequest
	if err := c.decode(r, &req); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	err := c.service.OnPaymentConfirmed(r.Context(), req.RequesterID, req.Amount)
	if err != nil {
		// Duplicate confirmations are benign: report them as already
		// processed rather than as failures.
		if errors.Is(err, errs.ErrAlreadyProcessed) {
			c.writeJSON(w, http.StatusOK, StatusResponse{Status: "already processed"})
			return
		}
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Precheckout answers the gateway probe (POST /api/events/precheckout).
func (c *EventsController) Precheckout(w http.ResponseWriter, r *http.Request) {
	var req PrecheckoutRequest
	if err := c.decode(r, &req); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	ok, err := c.service.OnPrecheckout(r.Context(), req.PaymentHandle)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, PrecheckoutResponse{OK: ok})
}

func (c *EventsController) decode(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return checkJSONDecodeError(err)
	}

	if err := c.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInvalidRequest, err)
	}

	return nil
}

func (c *EventsController) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Errorf("encode response: %s", err)
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *EventsController) ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest),
		errors.Is(err, errs.ErrInvalidUnitCount):
		code = http.StatusBadRequest

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound

	// Status Conflict (409).
	case errors.Is(err, errs.ErrAmountMismatch),
		errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict

	// Status Unprocessable Entity (422).
	case errors.Is(err, errs.ErrUnprocessableArtifact):
		code = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	c.logger.Errorf("events controller [%d]: %s", code, err)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
