package registration

import (
	"context"
	"errors"
	"fmt"

	"eventreg/internal/domain/registrations"
	"eventreg/internal/mailer"

	"go.uber.org/zap"
)

// Event describes the paid event registrants sign up for.
type Event struct {
	Name       string
	Date       string
	Time       string
	Amount     float64
	Currency   string
	AdminEmail string
}

const (
	DefaultAmount   = 99
	DefaultCurrency = "INR"
)

func (e Event) withDefaults() Event {
	if e.Amount <= 0 {
		e.Amount = DefaultAmount
	}
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	return e
}

func (e Event) FormattedAmount() string {
	return fmt.Sprintf("%s %.2f", e.Currency, e.Amount)
}

// Notifier sends the registrant and admin confirmation emails.
type Notifier struct {
	mailer mailer.Client
	event  Event
	logger *zap.SugaredLogger
}

func NewNotifier(m mailer.Client, event Event, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{mailer: m, event: event.withDefaults(), logger: logger}
}

// Notify is best effort: every failure is logged and returned joined, but one
// failed email does not stop the other.
func (n *Notifier) Notify(ctx context.Context, reg *registrations.Registration) error {
	vars := struct {
		FullName      string
		Email         string
		Phone         string
		ReferenceID   string
		TransactionID string
		EventName     string
		EventDate     string
		EventTime     string
		Amount        string
	}{
		FullName:      reg.FullName,
		Email:         reg.Email,
		Phone:         reg.Phone,
		ReferenceID:   reg.ReferenceID,
		TransactionID: reg.TransactionID,
		EventName:     n.event.Name,
		EventDate:     n.event.Date,
		EventTime:     n.event.Time,
		Amount:        n.event.FormattedAmount(),
	}

	var errs []error

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify %s: %w", reg.ReferenceID, err)
	}
	if err := n.mailer.Send(mailer.RegistrationConfirmedTemplate, reg.FullName, reg.Email, vars); err != nil {
		nerr := &NotificationError{Template: mailer.RegistrationConfirmedTemplate, Email: reg.Email, Cause: err}
		n.logger.Errorw("error sending registration confirmation", "referenceId", reg.ReferenceID, "error", nerr.Error())
		errs = append(errs, nerr)
	}

	if n.event.AdminEmail != "" {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("admin notification for %s: %w", reg.ReferenceID, err))
		} else if err := n.mailer.Send(mailer.AdminPaymentReceivedTemplate, "Admin", n.event.AdminEmail, vars); err != nil {
			nerr := &NotificationError{Template: mailer.AdminPaymentReceivedTemplate, Email: n.event.AdminEmail, Cause: err}
			n.logger.Errorw("error sending admin notification", "referenceId", reg.ReferenceID, "error", nerr.Error())
			errs = append(errs, nerr)
		}
	}

	if len(errs) == 0 {
		n.logger.Infow("confirmation emails sent", "referenceId", reg.ReferenceID, "transactionId", reg.TransactionID)
	}
	return errors.Join(errs...)
}
