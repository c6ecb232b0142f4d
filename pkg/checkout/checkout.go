// Package checkout wraps a hosted payment checkout provider: create a session,
// send the buyer to its URL, and later resolve the session to learn whether it was paid.
package checkout

import (
	"context"
	"errors"
	"strings"
)

// PaymentStatus is the provider's view of whether a session has been paid.
type PaymentStatus string

const (
	StatusPaid              PaymentStatus = "paid"
	StatusUnpaid            PaymentStatus = "unpaid"
	StatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// SessionIDPlaceholder is substituted by the provider into the success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

var (
	// ErrSessionNotFound is returned when the provider has no such session.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrUnavailable wraps network failures, timeouts and provider 5xx responses.
	ErrUnavailable = errors.New("checkout provider unavailable")
	// ErrRejected wraps 4xx responses other than not-found.
	ErrRejected = errors.New("checkout request rejected")
	// ErrInvalidSignature is returned for webhook payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// SessionParams describes a single-line-item checkout.
type SessionParams struct {
	ProductName     string
	UnitAmountCents int64
	Quantity        int64
	Currency        string
	SuccessURL      string
	CancelURL       string
	Metadata        map[string]string
}

// Session is a checkout session as reported by the provider.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// Paid reports whether the buyer has completed payment.
func (s *Session) Paid() bool {
	return s.PaymentStatus == StatusPaid
}

// Event is a verified webhook notification about a session.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

// Event types the application reacts to.
const (
	EventSessionCompleted           = "checkout.session.completed"
	EventSessionAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

// Gateway defines the checkout operations the application needs.
type Gateway interface {
	// CreateSession starts a hosted checkout and returns its redirect URL.
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
	// ResolveSession fetches the current state of a session.
	ResolveSession(ctx context.Context, sessionID string) (*Session, error)
	// VerifyWebhook checks a webhook signature and decodes the event.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}

// SuccessURL builds the provider success URL for a base URL and path.
func SuccessURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path + "?session_id=" + SessionIDPlaceholder
}
