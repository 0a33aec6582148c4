package router

// This file registers the customer reservation endpoints and the payment
// provider webhook.  Neither group uses JWT: customers are anonymous and the
// webhook authenticates itself with its signature header.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sound-rental/internal/handler"
)

// RegisterReservations mounts submission, the status/verify pair polled by
// the client after checkout, and customer cancellation.  Only submission is
// rate limited; verification is throttled inside the reservation service.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations")
	g.POST("", h.Submit, limit)
	g.GET("/:id/status", h.Status)
	g.POST("/:id/verify", h.Verify)
	g.POST("/:id/cancel", h.Cancel)
}

// RegisterPayments mounts the provider webhook.
func RegisterPayments(e *echo.Echo, h *handler.WebhookHandler) {
	e.POST("/v1/payments/webhook", h.Handle)
}
