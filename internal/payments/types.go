package payments

const (
	ProviderCashfree = "cashfree"
	ProviderRazorpay = "razorpay"
)

type PaymentRequest struct {
	ReferenceID   string
	Amount        float64
	Currency      string
	ProductName   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type PaymentResponse struct {
	OrderID          string            `json:"orderId"`
	PaymentSessionID string            `json:"paymentSessionId,omitempty"` // cashfree
	KeyID            string            `json:"keyId,omitempty"`            // razorpay checkout key
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	Data             map[string]string `json:"data,omitempty"`
}

type PaymentVerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	Data      map[string]string
}

type PaymentVerifyResponse struct {
	Success       bool
	State         string // provider status string, e.g. PAID, ACTIVE, paid, attempted
	Terminal      bool
	OrderID       string
	TransactionID string
	Raw           map[string]any
}

// WebhookEvent is a provider push notification reduced to what the
// registration workflow needs.
type WebhookEvent struct {
	Provider      string
	Type          string
	OrderID       string
	TransactionID string
	Status        string
	Paid          bool
}
