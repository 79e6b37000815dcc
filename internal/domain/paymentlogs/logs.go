package paymentlogs

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	LogTypeRequest  = "request"
	LogTypeResponse = "response"
	LogTypeWebhook  = "webhook"
	LogTypeError    = "error"
)

// PaymentLog is one gateway interaction kept for reconciliation.
type PaymentLog struct {
	ID          int64           `json:"id"`
	ReferenceID string          `json:"referenceId,omitempty"`
	OrderID     string          `json:"orderId,omitempty"`
	Gateway     string          `json:"gateway"`
	LogType     string          `json:"logType"` // request, response, webhook, error
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type LogsStore interface {
	InsertPaymentLog(ctx context.Context, log *PaymentLog) error
	// ListPaymentLogs returns logs oldest first. An empty referenceID lists all.
	ListPaymentLogs(ctx context.Context, referenceID string, limit int) ([]PaymentLog, error)
}

func marshalPayload(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return b
}

// New builds a log entry, encoding payload as JSON. Payloads that fail to
// encode are dropped rather than failing the caller.
func New(referenceID, orderID, gateway, logType string, payload any) *PaymentLog {
	return &PaymentLog{
		ReferenceID: referenceID,
		OrderID:     orderID,
		Gateway:     gateway,
		LogType:     logType,
		Payload:     marshalPayload(payload),
	}
}

type MemoryLogs struct {
	mu     sync.Mutex
	logs   []PaymentLog
	nextID int64
}

func NewMemoryLogs() *MemoryLogs {
	return &MemoryLogs{}
}

func (m *MemoryLogs) InsertPaymentLog(ctx context.Context, log *PaymentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	log.ID = m.nextID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *MemoryLogs) ListPaymentLogs(ctx context.Context, referenceID string, limit int) ([]PaymentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []PaymentLog{}
	for _, l := range m.logs {
		if referenceID != "" && l.ReferenceID != referenceID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
