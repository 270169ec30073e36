package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	PENDING   Status = "PENDING"
	AWAITING  Status = "AWAITING_PAYMENT"
	PAID      Status = "PAID"
	FULFILLED Status = "FULFILLED"
	ABANDONED Status = "ABANDONED"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == FULFILLED || s == ABANDONED
}

// Order is one requester's artifact-to-fulfillment transaction,
// from upload through payment to dispatch.
// Fields aligned for the GC optimal scanning.
type Order struct {
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	RequesterID   string    `db:"requester_id" json:"requester_id"`
	ArtifactRef   string    `db:"artifact_ref" json:"artifact_ref"`
	Filename      string    `db:"filename" json:"filename"`
	PaymentHandle string    `db:"payment_handle" json:"payment_handle"`
	Currency      string    `db:"currency" json:"currency"`
	Status        Status    `db:"status" json:"status"`
	ID            uuid.UUID `db:"id" json:"id"`
	AmountDue     int64     `db:"amount_due" json:"amount_due"`
	UnitCount     int       `db:"unit_count" json:"unit_count"`
}

// New returns a Pending order for the given requester.
// AmountDue must never be mutated after this point.
func New(requesterID, artifactRef, filename string, unitCount int, amountDue int64, currency string) *Order {
	now := time.Now()
	return &Order{
		ID:          uuid.New(),
		RequesterID: requesterID,
		ArtifactRef: artifactRef,
		Filename:    filename,
		UnitCount:   unitCount,
		AmountDue:   amountDue,
		Currency:    currency,
		Status:      PENDING,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
