package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MockSignature is the only signature header MockGateway accepts.
const MockSignature = "mock-signature"

// MockGateway is an in-memory Gateway for tests and for running without Stripe keys.
type MockGateway struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	nextID      int
	autoPay     bool
	checkoutURL string
	createErr   error
	resolveErr  error

	CreateCalls  int
	ResolveCalls int
	LastParams   *SessionParams
}

// MockOption configures the mock gateway
type MockOption func(*MockGateway)

// WithAutoPay makes every new session immediately paid and points its URL at
// the success URL, so the buyer skips the hosted page entirely.
func WithAutoPay() MockOption {
	return func(m *MockGateway) {
		m.autoPay = true
	}
}

// WithCheckoutURL sets the base of generated checkout URLs.
func WithCheckoutURL(url string) MockOption {
	return func(m *MockGateway) {
		m.checkoutURL = url
	}
}

// WithCreateError makes CreateSession fail.
func WithCreateError(err error) MockOption {
	return func(m *MockGateway) {
		m.createErr = err
	}
}

// WithResolveError makes ResolveSession fail.
func WithResolveError(err error) MockOption {
	return func(m *MockGateway) {
		m.resolveErr = err
	}
}

// WithSession preloads a session.
func WithSession(s Session) MockOption {
	return func(m *MockGateway) {
		m.sessions[s.ID] = copySession(&s)
	}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(opts ...MockOption) *MockGateway {
	m := &MockGateway{
		sessions:    make(map[string]*Session),
		checkoutURL: "https://checkout.mock.local/pay",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession records a new unpaid (or auto-paid) session.
func (m *MockGateway) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	params := p
	m.LastParams = &params
	if m.createErr != nil {
		return nil, m.createErr
	}

	m.nextID++
	id := fmt.Sprintf("cs_mock_%d", m.nextID)
	s := &Session{
		ID:            id,
		URL:           m.checkoutURL + "/" + id,
		PaymentStatus: StatusUnpaid,
		AmountTotal:   p.UnitAmountCents * p.Quantity,
		Metadata:      make(map[string]string, len(p.Metadata)),
	}
	for k, v := range p.Metadata {
		s.Metadata[k] = v
	}
	if m.autoPay {
		s.PaymentStatus = StatusPaid
		s.URL = strings.ReplaceAll(p.SuccessURL, SessionIDPlaceholder, id)
	}
	m.sessions[id] = s
	return copySession(s), nil
}

// ResolveSession returns a stored session.
func (m *MockGateway) ResolveSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveCalls++
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(s), nil
}

// VerifyWebhook accepts payloads signed with MockSignature. The payload is a
// Stripe-shaped event: {"id", "type", "data": {"object": {...session...}}}.
func (m *MockGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if signatureHeader != MockSignature {
		return nil, ErrInvalidSignature
	}
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object *Session `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &Event{ID: raw.ID, Type: raw.Type, Session: raw.Data.Object}, nil
}

// MarkPaid simulates the buyer completing payment.
func (m *MockGateway) MarkPaid(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.PaymentStatus = StatusPaid
	}
}

// SetResolveError changes the ResolveSession failure after construction.
func (m *MockGateway) SetResolveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveErr = err
}

// Sessions returns the number of sessions created or preloaded.
func (m *MockGateway) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func copySession(s *Session) *Session {
	out := *s
	out.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

var _ Gateway = (*MockGateway)(nil)
