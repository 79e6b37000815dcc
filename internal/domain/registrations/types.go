package registrations

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("registration not found")
	ErrConflict          = errors.New("registration already exists")
	ErrAlreadyConfirmed  = errors.New("registration payment already confirmed")
	ErrInvalidTransition = errors.New("invalid registration state transition")
)

// Registration is one registrant for the event together with its payment state.
type Registration struct {
	ReferenceID      string    `json:"referenceId"`
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Timestamp        time.Time `json:"timestamp"`
	PaymentConfirmed bool      `json:"paymentConfirmed"`
	TransactionID    string    `json:"transactionId,omitempty"`
	OrderID          string    `json:"orderId,omitempty"`
	Gateway          string    `json:"gateway,omitempty"` // cashfree, razorpay
}

// OrderLink ties a gateway order to the registration it was issued for. Every
// order ever created stays linked, not only the latest one.
type OrderLink struct {
	OrderID     string    `json:"orderId"`
	ReferenceID string    `json:"referenceId"`
	Gateway     string    `json:"gateway,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Store interface {
	Create(ctx context.Context, r *Registration) error
	Get(ctx context.Context, referenceID string) (*Registration, error)
	// Update applies fn to the current record and persists the result atomically.
	// If fn returns an error nothing is written and the error is returned as is.
	// Update also links a newly set OrderID, so earlier orders keep resolving
	// after a later one replaces them on the record.
	Update(ctx context.Context, referenceID string, fn func(r *Registration) error) error
	FindByOrderID(ctx context.Context, orderID string) (string, error)
	FindOrder(ctx context.Context, orderID string) (*OrderLink, error)
	IsConfirmed(ctx context.Context, referenceID string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*Registration, int, error)
}

// Confirm marks r as paid with the given transaction id. It returns
// ErrAlreadyConfirmed when r was already paid so callers can tell the first
// confirmation apart from repeats.
func Confirm(r *Registration, transactionID string) error {
	if r.PaymentConfirmed {
		return ErrAlreadyConfirmed
	}
	if transactionID == "" {
		return ErrInvalidTransition
	}
	r.PaymentConfirmed = true
	r.TransactionID = transactionID
	return nil
}

// checkTransition enforces that payment state only moves forward and that a
// transaction id exists exactly when the payment is confirmed.
func checkTransition(before, after *Registration) error {
	if after.ReferenceID != before.ReferenceID {
		return ErrInvalidTransition
	}
	if before.PaymentConfirmed && !after.PaymentConfirmed {
		return ErrInvalidTransition
	}
	if after.PaymentConfirmed != (after.TransactionID != "") {
		return ErrInvalidTransition
	}
	if before.PaymentConfirmed && after.TransactionID != before.TransactionID {
		return ErrInvalidTransition
	}
	return nil
}
