package payment

import (
    "encoding/json"
    "fmt"

    "github.com/stripe/stripe-go/v76"
    "github.com/stripe/stripe-go/v76/webhook"
)

// WebhookParser authenticates Stripe webhook payloads and reduces the
// checkout events to Notifications.
type WebhookParser struct {
    secret string
}

func NewWebhookParser(secret string) *WebhookParser { return &WebhookParser{secret: secret} }

// Parse verifies the Stripe-Signature header and decodes the event.  Events
// other than checkout session outcomes return ErrIgnoredEvent.
func (w *WebhookParser) Parse(payload []byte, signature string) (Notification, error) {
    event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret,
        webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
    if err != nil {
        return Notification{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
    }
    return notificationFromEvent(event)
}

func notificationFromEvent(event stripe.Event) (Notification, error) {
    var status SessionStatus
    switch string(event.Type) {
    case "checkout.session.completed", "checkout.session.async_payment_succeeded":
        status = StatusPaid
    case "checkout.session.expired":
        status = StatusExpired
    default:
        return Notification{}, ErrIgnoredEvent
    }
    if event.Data == nil {
        return Notification{}, fmt.Errorf("payment: event %s has no data", event.ID)
    }
    var s stripe.CheckoutSession
    if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
        return Notification{}, fmt.Errorf("payment: decode checkout session: %w", err)
    }
    // completed fires before delayed payment methods settle
    if status == StatusPaid && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
        return Notification{}, ErrIgnoredEvent
    }
    n := Notification{EventID: event.ID, SessionRef: s.ID, ReservationID: s.ClientReferenceID, Status: status}
    if n.ReservationID == "" && s.Metadata != nil {
        n.ReservationID = s.Metadata["reservation_id"]
    }
    return n, nil
}
