package rest

import (
	"time"

	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/internal/pricing"
)

// UploadResponse returns the invoice data for a priced upload.
type UploadResponse struct {
	OrderID       string `json:"order_id"`
	PaymentHandle string `json:"payment_handle"`
	Currency      string `json:"currency"`
	AmountDisplay string `json:"amount_display"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Pages         int    `json:"pages"`
}

func NewUploadResponseFromOrder(o *order.Order) *UploadResponse {
	return &UploadResponse{
		OrderID:       o.ID.String(),
		PaymentHandle: o.PaymentHandle,
		Currency:      o.Currency,
		AmountDisplay: pricing.FormatAmount(o.AmountDue, o.Currency),
		Status:        string(o.Status),
		Amount:        o.AmountDue,
		Pages:         o.UnitCount,
	}
}

// StatusResponse reports the outcome of an event.
type StatusResponse struct {
	Status string `json:"status"`
}

// PrecheckoutResponse answers the gateway probe.
type PrecheckoutResponse struct {
	OK bool `json:"ok"`
}

// OrderView is the operator representation of an order.
type OrderView struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	OrderID       string    `json:"order_id"`
	RequesterID   string    `json:"requester_id"`
	Filename      string    `json:"filename"`
	Status        string    `json:"status"`
	AmountDisplay string    `json:"amount_display"`
	Amount        int64     `json:"amount"`
	Pages         int       `json:"pages"`
}

func NewOrderViewFromOrder(o *order.Order) *OrderView {
	return &OrderView{
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		OrderID:       o.ID.String(),
		RequesterID:   o.RequesterID,
		Filename:      o.Filename,
		Status:        string(o.Status),
		AmountDisplay: pricing.FormatAmount(o.AmountDue, o.Currency),
		Amount:        o.AmountDue,
		Pages:         o.UnitCount,
	}
}
