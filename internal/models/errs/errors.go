package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound              = errors.New("not found")
	ErrDataConflict          = errors.New("data conflict")
	ErrAlreadyProcessed      = errors.New("already processed")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidUnitCount      = errors.New("invalid unit count")
	ErrAmountMismatch        = errors.New("payment amount mismatch")
	ErrUnprocessableArtifact = errors.New("unprocessable artifact")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// Type just for marshalling purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// Let users know which required request parameter is not provided.
type RequiredRequestParamError struct {
	ParamName string
}

func (e *RequiredRequestParamError) Error() string {
	return fmt.Sprintf("request argument %q is required, but not found", e.ParamName)
}

// Authorization errors wrapper.
type InvalidAuthorizationError struct {
	Message string
}

func (e *InvalidAuthorizationError) Error() string {
	return fmt.Sprintf("invalid authorization data: %s", e.Message)
}
