package payment

import (
    "context"
    "fmt"

    "github.com/stripe/stripe-go/v76"
    "github.com/stripe/stripe-go/v76/client"
)

// StripeConfig configures the Stripe Checkout adapter.
type StripeConfig struct {
    SecretKey  string
    SuccessURL string // {RESERVATION_ID} is replaced with the reservation id
    CancelURL  string
    BackendURL string // overrides api.stripe.com, used against stripe-mock and in tests
}

// StripeProvider opens and inspects Stripe Checkout sessions.
type StripeProvider struct {
    api *client.API
    cfg StripeConfig
}

// NewStripeProvider returns a provider bound to its own API client so that
// keys never leak through the package-level stripe.Key.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
    var backends *stripe.Backends
    if cfg.BackendURL != "" {
        b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
            URL:               stripe.String(cfg.BackendURL),
            MaxNetworkRetries: stripe.Int64(0),
        })
        backends = &stripe.Backends{API: b, Connect: b, Uploads: b}
    }
    api := &client.API{}
    api.Init(cfg.SecretKey, backends)
    return &StripeProvider{api: api, cfg: cfg}
}

// CreateSession opens a one-line payment-mode session for the amount.  The
// reservation id travels as client_reference_id and metadata so webhooks
// can be matched even without the session id.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
    params := &stripe.CheckoutSessionParams{
        Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
        SuccessURL:        stripe.String(expandURL(p.cfg.SuccessURL, req.ReservationID)),
        CancelURL:         stripe.String(expandURL(p.cfg.CancelURL, req.ReservationID)),
        ClientReferenceID: stripe.String(req.ReservationID),
        LineItems: []*stripe.CheckoutSessionLineItemParams{{
            PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
                Currency:   stripe.String(string(stripe.CurrencyEUR)),
                UnitAmount: stripe.Int64(req.AmountCents),
                ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
                    Name: stripe.String(req.Description),
                },
            },
            Quantity: stripe.Int64(1),
        }},
    }
    if req.Email != "" {
        params.CustomerEmail = stripe.String(req.Email)
    }
    if req.ExpiresAtUnix > 0 {
        params.ExpiresAt = stripe.Int64(req.ExpiresAtUnix)
    }
    params.Context = ctx
    params.AddMetadata("reservation_id", req.ReservationID)
    params.SetIdempotencyKey(IdempotencyKey(req.ReservationID, "checkout"))

    s, err := p.api.CheckoutSessions.New(params)
    if err != nil {
        return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
    }
    return Session{Ref: s.ID, RedirectURL: s.URL}, nil
}

// GetSessionStatus fetches the session and maps it onto SessionStatus.
func (p *StripeProvider) GetSessionStatus(ctx context.Context, ref string) (SessionStatus, error) {
    params := &stripe.CheckoutSessionParams{}
    params.Context = ctx
    s, err := p.api.CheckoutSessions.Get(ref, params)
    if err != nil {
        return "", fmt.Errorf("stripe: get checkout session %s: %w", ref, err)
    }
    return mapSession(s), nil
}

func mapSession(s *stripe.CheckoutSession) SessionStatus {
    switch {
    case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
        return StatusPaid
    case s.Status == stripe.CheckoutSessionStatusExpired:
        return StatusExpired
    }
    return StatusUnpaid
}
