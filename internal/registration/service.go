package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"eventreg/internal/domain/paymentlogs"
	"eventreg/internal/domain/registrations"
	"eventreg/internal/payments"

	"go.uber.org/zap"
)

const maxReferenceAttempts = 5

// NotifyTimeout bounds the background delivery of one pair of confirmation
// emails.
const NotifyTimeout = time.Minute

const (
	opCreateOrder   = "create order"
	opCheckStatus   = "check status"
	opVerifyPayment = "verify payment"
	opWebhook       = "webhook"

	sourceStatus  = "status"
	sourceVerify  = "verify"
	sourceLegacy  = "legacy"
	sourceWebhook = "webhook"
)

var logTypes = map[string]string{
	opCreateOrder:   paymentlogs.LogTypeRequest,
	opCheckStatus:   paymentlogs.LogTypeResponse,
	opVerifyPayment: paymentlogs.LogTypeResponse,
	opWebhook:       paymentlogs.LogTypeWebhook,
}

// Gateways resolves a payment provider by name. *payments.PaymentManager
// satisfies it.
type Gateways interface {
	Gateway(name string) (payments.PaymentGateway, error)
	Default() string
}

// Recorder receives workflow counters. *metrics.Metrics satisfies it.
type Recorder interface {
	GatewayCall(gateway, op string, err error)
	PaymentConfirmed(source string)
}

type Service struct {
	store    registrations.Store
	gateways Gateways
	notifier *Notifier
	refs     *ReferenceGenerator
	event    Event
	logger   *zap.SugaredLogger
	locks    *keyedMutex
	logs     paymentlogs.LogsStore
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

func NewService(store registrations.Store, gateways Gateways, notifier *Notifier, refs *ReferenceGenerator, event Event, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:    store,
		gateways: gateways,
		notifier: notifier,
		refs:     refs,
		event:    event.withDefaults(),
		logger:   logger,
		locks:    newKeyedMutex(),
		timeout:  payments.DefaultTimeout,
		now:      time.Now,

		notifyTimeout: NotifyTimeout,
	}
}

// SetPaymentLogs enables recording of gateway interactions.
func (s *Service) SetPaymentLogs(logs paymentlogs.LogsStore) {
	s.logs = logs
}

func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Service) Event() Event {
	return s.event
}

type Registrant struct {
	FullName string
	Email    string
	Phone    string
}

// Register stores a new unpaid registration under a freshly generated reference id.
func (s *Service) Register(ctx context.Context, in Registrant) (*registrations.Registration, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	switch {
	case in.FullName == "":
		return nil, newValidationError("fullName", "is required")
	case in.Email == "":
		return nil, newValidationError("email", "is required")
	case in.Phone == "":
		return nil, newValidationError("phone", "is required")
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		id, err := s.refs.New()
		if err != nil {
			return nil, fmt.Errorf("generate reference id: %w", err)
		}

		reg := &registrations.Registration{
			ReferenceID: id,
			FullName:    in.FullName,
			Email:       in.Email,
			Phone:       in.Phone,
			Timestamp:   s.now().UTC(),
		}
		err = s.store.Create(ctx, reg)
		if errors.Is(err, registrations.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Infow("registration created", "referenceId", id)
		return reg, nil
	}

	return nil, fmt.Errorf("could not allocate a unique reference id after %d attempts", maxReferenceAttempts)
}

type Order struct {
	ReferenceID string
	Gateway     string
	payments.PaymentResponse
}

// CreateOrder opens a payment order for a registration and links it to the
// record. Calling it again issues a new order; the record shows the latest
// one and every earlier order still resolves to the registration.
func (s *Service) CreateOrder(ctx context.Context, referenceID, provider string) (*Order, error) {
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, newValidationError("referenceId", "is required")
	}

	reg, err := s.store.Get(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if reg.PaymentConfirmed {
		return nil, ErrAlreadyConfirmed
	}

	gateway, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := gateway.InitiatePayment(ctx, payments.PaymentRequest{
		ReferenceID:   reg.ReferenceID,
		Amount:        s.event.Amount,
		Currency:      s.event.Currency,
		ProductName:   s.event.Name,
		CustomerName:  reg.FullName,
		CustomerEmail: reg.Email,
		CustomerPhone: reg.Phone,
	})
	if err != nil {
		s.record(ctx, opCreateOrder, referenceID, "", gateway.Name(), nil, err)
		return nil, err
	}
	s.record(ctx, opCreateOrder, referenceID, resp.OrderID, gateway.Name(), resp, nil)

	err = s.store.Update(ctx, referenceID, func(r *registrations.Registration) error {
		r.OrderID = resp.OrderID
		r.Gateway = gateway.Name()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("payment order created", "referenceId", referenceID, "orderId", resp.OrderID, "gateway", gateway.Name())
	return &Order{ReferenceID: referenceID, Gateway: gateway.Name(), PaymentResponse: resp}, nil
}

type StatusResult struct {
	OrderID     string
	ReferenceID string
	Status      string
	Paid        bool
	Confirmed   bool
}

// CheckStatus polls the provider for an order and confirms the linked
// registration when the provider reports it paid.
func (s *Service) CheckStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, newValidationError("orderId", "is required")
	}

	refID, provider, err := s.lookupOrder(ctx, orderID)
	if err != nil && !errors.Is(err, registrations.ErrNotFound) {
		return nil, err
	}

	gateway, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}

	if refID != "" {
		unlock := s.locks.Lock(refID)
		defer unlock()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := gateway.CheckStatus(ctx, orderID)
	if err != nil {
		s.record(ctx, opCheckStatus, refID, orderID, gateway.Name(), nil, err)
		return nil, err
	}
	s.record(ctx, opCheckStatus, refID, orderID, gateway.Name(), res, nil)

	out := &StatusResult{OrderID: orderID, ReferenceID: refID, Status: res.State, Paid: res.Success}
	if !res.Success {
		return out, nil
	}
	if refID == "" {
		s.logger.Warnw("paid order has no registration", "orderId", orderID, "gateway", gateway.Name())
		return out, nil
	}

	if _, err := s.confirm(ctx, sourceStatus, refID, transactionOrOrder(res.TransactionID, orderID)); err != nil {
		return nil, err
	}
	out.Confirmed = true
	return out, nil
}

type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string
	Gateway   string
}

// VerifyPayment confirms a registration from a client submitted payment
// signature. A signature mismatch returns payments.ErrInvalidSignature and
// leaves the record unpaid.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyInput) (*StatusResult, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return nil, newValidationError("orderId", "is required")
	}

	refID, provider, err := s.lookupOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if in.Gateway != "" {
		provider = in.Gateway
	}

	gateway, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(refID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := gateway.VerifyPayment(ctx, payments.PaymentVerifyRequest{
		OrderID:   in.OrderID,
		PaymentID: strings.TrimSpace(in.PaymentID),
		Signature: strings.TrimSpace(in.Signature),
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			s.logger.Warnw("payment signature mismatch", "referenceId", refID, "orderId", in.OrderID)
		}
		s.record(ctx, opVerifyPayment, refID, in.OrderID, gateway.Name(), nil, err)
		return nil, err
	}
	s.record(ctx, opVerifyPayment, refID, in.OrderID, gateway.Name(), res, nil)

	out := &StatusResult{OrderID: in.OrderID, ReferenceID: refID, Status: res.State, Paid: res.Success}
	if !res.Success {
		return out, nil
	}

	if _, err := s.confirm(ctx, sourceVerify, refID, transactionOrOrder(res.TransactionID, in.OrderID)); err != nil {
		return nil, err
	}
	out.Confirmed = true
	return out, nil
}

// ConfirmLegacy marks a registration paid with a caller supplied transaction
// id, without consulting the gateway.
func (s *Service) ConfirmLegacy(ctx context.Context, referenceID, transactionID string) (*registrations.Registration, error) {
	referenceID = strings.TrimSpace(referenceID)
	transactionID = strings.TrimSpace(transactionID)
	if referenceID == "" {
		return nil, newValidationError("referenceId", "is required")
	}
	if transactionID == "" {
		return nil, newValidationError("transactionId", "is required")
	}

	unlock := s.locks.Lock(referenceID)
	defer unlock()

	if _, err := s.confirm(ctx, sourceLegacy, referenceID, transactionID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, referenceID)
}

// HandleWebhook processes a provider push notification. Callers must
// acknowledge the provider regardless of the returned error.
func (s *Service) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (payments.WebhookEvent, error) {
	gateway, err := s.gateway(provider)
	if err != nil {
		return payments.WebhookEvent{}, err
	}

	ev, err := gateway.ParseWebhook(ctx, header, body)
	if err != nil {
		s.record(ctx, opWebhook, "", ev.OrderID, gateway.Name(), nil, err)
		return ev, err
	}

	var payload any = string(body)
	if json.Valid(body) {
		payload = json.RawMessage(body)
	}
	refID, findErr := s.store.FindByOrderID(ctx, ev.OrderID)
	s.record(ctx, opWebhook, refID, ev.OrderID, gateway.Name(), payload, nil)

	if !ev.Paid {
		s.logger.Infow("webhook ignored", "gateway", gateway.Name(), "type", ev.Type, "orderId", ev.OrderID, "status", ev.Status)
		return ev, nil
	}

	if findErr != nil {
		return ev, fmt.Errorf("webhook order %q: %w", ev.OrderID, findErr)
	}

	unlock := s.locks.Lock(refID)
	defer unlock()

	if _, err := s.confirm(ctx, sourceWebhook, refID, transactionOrOrder(ev.TransactionID, ev.OrderID)); err != nil {
		return ev, err
	}
	return ev, nil
}

// IsConfirmed reports Confirmed Set membership for a reference id or, failing
// that, for the registration linked to an order id. Unknown keys are false.
func (s *Service) IsConfirmed(ctx context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}

	ok, err := s.store.IsConfirmed(ctx, key)
	if err != nil {
		s.logger.Errorw("confirmed lookup failed", "key", key, "error", err.Error())
		return false
	}
	if ok {
		return true
	}

	refID, err := s.store.FindByOrderID(ctx, key)
	if err != nil {
		return false
	}
	ok, err = s.store.IsConfirmed(ctx, refID)
	return err == nil && ok
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*registrations.Registration, int, error) {
	return s.store.List(ctx, limit, offset)
}

// PaymentLogs lists recorded gateway interactions, optionally for one
// registration. It returns nothing when no log store is configured.
func (s *Service) PaymentLogs(ctx context.Context, referenceID string, limit int) ([]paymentlogs.PaymentLog, error) {
	if s.logs == nil {
		return []paymentlogs.PaymentLog{}, nil
	}
	return s.logs.ListPaymentLogs(ctx, strings.TrimSpace(referenceID), limit)
}

// record writes a gateway interaction to the payment log and the recorder.
// Both are optional; log write failures are only logged.
func (s *Service) record(ctx context.Context, op, referenceID, orderID, gateway string, payload any, opErr error) {
	if s.recorder != nil {
		s.recorder.GatewayCall(gateway, op, opErr)
	}
	if s.logs == nil {
		return
	}

	logType := logTypes[op]
	if opErr != nil {
		logType = paymentlogs.LogTypeError
		payload = map[string]string{"op": op, "error": opErr.Error()}
	}

	entry := paymentlogs.New(referenceID, orderID, gateway, logType, payload)
	if err := s.logs.InsertPaymentLog(ctx, entry); err != nil {
		s.logger.Errorw("failed to record payment log", "orderId", orderID, "op", op, "error", err.Error())
	}
}

// confirm flips the registration to paid. Only the call that performs the
// transition sends notifications; repeats are no-ops that report false.
func (s *Service) confirm(ctx context.Context, source, referenceID, transactionID string) (bool, error) {
	var confirmed registrations.Registration
	err := s.store.Update(ctx, referenceID, func(r *registrations.Registration) error {
		if err := registrations.Confirm(r, transactionID); err != nil {
			return err
		}
		confirmed = *r
		return nil
	})
	if errors.Is(err, registrations.ErrAlreadyConfirmed) {
		s.logger.Infow("payment already confirmed", "referenceId", referenceID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Infow("payment confirmed", "referenceId", referenceID, "transactionId", transactionID, "source", source)
	if s.recorder != nil {
		s.recorder.PaymentConfirmed(source)
	}

	s.notify(ctx, confirmed)
	return true, nil
}

// notify delivers the confirmation emails in the background so a slow mail
// relay holds neither the request nor the registration lock. Delivery is best
// effort; the payment stays confirmed when it fails.
func (s *Service) notify(ctx context.Context, reg registrations.Registration) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		_ = s.notifier.Notify(ctx, &reg)
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookupOrder resolves any order ever issued for a registration, along with
// the gateway that issued it.
func (s *Service) lookupOrder(ctx context.Context, orderID string) (refID, provider string, err error) {
	link, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return "", "", err
	}
	if link.Gateway != "" {
		return link.ReferenceID, link.Gateway, nil
	}
	reg, err := s.store.Get(ctx, link.ReferenceID)
	if err != nil {
		return "", "", err
	}
	return link.ReferenceID, reg.Gateway, nil
}

func (s *Service) gateway(provider string) (payments.PaymentGateway, error) {
	g, err := s.gateways.Gateway(provider)
	if err != nil {
		if errors.Is(err, payments.ErrNotRegistered) {
			return nil, newValidationError("gateway", fmt.Sprintf("%q is not supported", provider))
		}
		return nil, err
	}
	return g, nil
}

func transactionOrOrder(transactionID, orderID string) string {
	if transactionID != "" {
		return transactionID
	}
	return orderID
}
