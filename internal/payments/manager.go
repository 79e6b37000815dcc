package payments

import (
	"fmt"
	"sort"
	"strings"
)

type PaymentManager struct {
	gateways map[string]PaymentGateway
	fallback string
}

func NewPaymentManager() *PaymentManager {
	return &PaymentManager{gateways: make(map[string]PaymentGateway)}
}

// RegisterGateway adds a provider. The first registered provider becomes the
// default until SetDefault is called.
func (m *PaymentManager) RegisterGateway(name string, gateway PaymentGateway) {
	name = strings.ToLower(name)
	m.gateways[name] = gateway
	if m.fallback == "" {
		m.fallback = name
	}
}

func (m *PaymentManager) SetDefault(name string) error {
	name = strings.ToLower(name)
	if _, ok := m.gateways[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	m.fallback = name
	return nil
}

func (m *PaymentManager) Default() string {
	return m.fallback
}

func (m *PaymentManager) Names() []string {
	names := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gateway resolves a provider by name; an empty name selects the default.
func (m *PaymentManager) Gateway(method string) (PaymentGateway, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = m.fallback
	}
	gateway, ok := m.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, method)
	}
	return gateway, nil
}
