package rest

// PaymentConfirmedRequest is the payment-confirmation webhook body.
type PaymentConfirmedRequest struct {
	RequesterID string `json:"requester_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// PrecheckoutRequest is the pre-checkout probe body.
type PrecheckoutRequest struct {
	PaymentHandle string `json:"payment_handle" validate:"required"`
}

// LoginRequest is the operator login body.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}
