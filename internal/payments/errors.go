package payments

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrTimeout          = errors.New("payment gateway timed out")
	ErrNotRegistered    = errors.New("gateway not registered")
)

// ConfigError reports missing gateway credentials.
type ConfigError struct {
	Provider string
	Missing  []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s gateway is not configured: missing %s", e.Provider, strings.Join(e.Missing, ", "))
}

func requireCredentials(provider string, creds map[string]string) error {
	var missing []string
	for name, v := range creds {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &ConfigError{Provider: provider, Missing: missing}
}

// RequestError is a failed call to the provider API. Payload carries the
// upstream response body so it can be surfaced to the caller.
type RequestError struct {
	Provider   string
	Op         string
	StatusCode int
	Payload    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed: http=%d body=%s", e.Provider, e.Op, e.StatusCode, e.Payload)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the call may succeed when repeated.
func (e *RequestError) Retryable() bool {
	return errors.Is(e.Err, ErrTimeout) || e.StatusCode >= 500
}
