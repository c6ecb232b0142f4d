package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/karmankarshows/carshow/internal/logger"
)

// StripeConfig configures a StripeGateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API endpoint. Used by tests.
	APIURL     string
	MaxRetries int64
	Timeout    time.Duration
}

// StripeGateway is a Gateway backed by Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	log           logger.Logger
}

// NewStripeGateway creates a Stripe-backed gateway.
func NewStripeGateway(cfg StripeConfig, log logger.Logger) *StripeGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     &leveledLogger{log: log},
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
}

// CreateSession creates a payment-mode checkout session with one line item.
func (g *StripeGateway) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	currency := p.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(p.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.ProductName),
				},
			},
			Quantity: stripe.Int64(p.Quantity),
		}},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	g.log.Debug("Stripe create session", "product", p.ProductName, "quantity", p.Quantity, "unit_amount", p.UnitAmountCents)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify("create session", err)
	}

	g.log.Info("Stripe session created", "session_id", s.ID, "amount_total", s.AmountTotal)
	return fromStripe(s), nil
}

// ResolveSession retrieves a session by ID.
func (g *StripeGateway) ResolveSession(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classify("resolve session", err)
	}

	g.log.Debug("Stripe session resolved", "session_id", s.ID, "payment_status", s.PaymentStatus)
	return fromStripe(s), nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes checkout events.
// Events that do not carry a checkout session come back with a nil Session.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if strings.HasPrefix(out.Type, "checkout.session.") && evt.Data != nil {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		out.Session = fromStripe(&s)
	}
	return out, nil
}

func fromStripe(s *stripe.CheckoutSession) *Session {
	metadata := make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		metadata[k] = v
	}
	return &Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: PaymentStatus(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Metadata:      metadata,
	}
}

// classify maps Stripe failures onto the package's sentinel errors.
func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, stripeErr.Msg)
		default:
			return fmt.Errorf("%s: %w: %s", op, ErrRejected, stripeErr.Msg)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// leveledLogger routes stripe-go's internal logging through our logger.
type leveledLogger struct {
	log logger.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), "component", "stripe")
}

var (
	_ Gateway                       = (*StripeGateway)(nil)
	_ stripe.LeveledLoggerInterface = (*leveledLogger)(nil)
)
