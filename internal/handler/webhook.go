package handler

import (
    "context"
    "errors"
    "io"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/payment"
    "github.com/iliyamo/sound-rental/internal/reservation"
)

// maxWebhookBytes caps the notification body.  Stripe events are well under
// this size.
const maxWebhookBytes = 64 << 10

// NotificationParser authenticates and decodes a provider notification.
type NotificationParser interface {
    Parse(payload []byte, signature string) (payment.Notification, error)
}

// NotificationApplier applies a decoded notification to its reservation.
type NotificationApplier interface {
    HandleNotification(ctx context.Context, n payment.Notification) (reservation.Outcome, error)
}

type WebhookHandler struct {
    parser NotificationParser
    svc    NotificationApplier
}

func NewWebhookHandler(p NotificationParser, svc NotificationApplier) *WebhookHandler {
    return &WebhookHandler{parser: p, svc: svc}
}

// Handle serves POST /v1/payments/webhook.
//
// The provider retries any non-2xx answer, so only failures worth retrying
// (storage errors) produce a 5xx.  Events we do not act on and sessions
// that are not ours are acknowledged with 200.  A bad signature is a 400 and
// nothing is applied.
func (h *WebhookHandler) Handle(c echo.Context) error {
    ctx := c.Request().Context()
    body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes+1))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
    }
    if len(body) > maxWebhookBytes {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "payload_too_large"})
    }

    n, err := h.parser.Parse(body, c.Request().Header.Get("Stripe-Signature"))
    switch {
    case errors.Is(err, payment.ErrIgnoredEvent):
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    case errors.Is(err, payment.ErrInvalidSignature):
        logx.Warn(ctx, "webhook signature rejected", logx.Err(err))
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_signature"})
    case err != nil:
        logx.Warn(ctx, "webhook payload rejected", logx.Err(err))
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_payload"})
    }

    out, err := h.svc.HandleNotification(ctx, n)
    if errors.Is(err, reservation.ErrNotFound) {
        logx.Warn(ctx, "webhook for unknown session",
            logx.Status("session", n.SessionRef),
            logx.ReservationID(n.ReservationID),
        )
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }
    if err != nil {
        logx.Error(ctx, "webhook not applied", logx.ReservationID(n.ReservationID), logx.Err(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"received": true, "status": out.Status})
}
