// Package adapters contains one implementation per external execution
// venue. All adapters expose the same quote/build/submit contract and are
// stateless between calls; every invocation is expected to go through the
// resilience wrapper.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// Adapter failure taxonomy. The resilience wrapper normalizes everything
// an adapter returns into this set before the router sees it.
var (
	// ErrUnavailable means the venue is unreachable; the call may be retried
	ErrUnavailable = errors.New("venue unavailable")
	// ErrRejected means the venue returned a business-rule rejection;
	// retrying with identical parameters will not help
	ErrRejected = errors.New("venue rejected request")
	// ErrInvalidResponse means the venue response could not be understood.
	// Treated as ErrUnavailable for retry purposes but logged distinctly.
	ErrInvalidResponse = errors.New("invalid venue response")
)

// Adapter is the uniform capability contract every execution venue
// implements
type Adapter interface {
	// Name returns the adapter's registry name
	Name() string

	// Capability returns the static descriptor used for adapter selection
	Capability() *models.ProtocolCapability

	// Quote returns a priced, time-bounded execution plan for the command
	Quote(ctx context.Context, cmd *models.Command) (*models.Quote, error)

	// Build produces whatever the venue needs signed
	Build(ctx context.Context, cmd *models.Command, quote *models.Quote) (*models.UnsignedPayload, error)

	// Submit hands a signed payload to the venue for settlement
	Submit(ctx context.Context, payload *models.UnsignedPayload, signature []byte) (*models.SettlementReference, error)
}

// unavailable wraps an underlying transport error as ErrUnavailable
func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// rejected wraps a venue rejection as ErrRejected
func rejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// invalidResponse wraps a malformed venue response as ErrInvalidResponse
func invalidResponse(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}

// classifyStatus maps an HTTP status code to the adapter error taxonomy
func classifyStatus(statusCode int, body string) error {
	switch {
	case statusCode >= 500 || statusCode == http.StatusTooManyRequests:
		return unavailable("status %d: %s", statusCode, body)
	case statusCode >= 400:
		return rejected("status %d: %s", statusCode, body)
	default:
		return nil
	}
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
