package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/pricing"
    "github.com/iliyamo/sound-rental/internal/reservation"
)

// writeError maps a domain error to its status code and machine-readable
// error code.  Anything unrecognised is logged and reported as a 500 without
// leaking the underlying message.
func writeError(c echo.Context, err error) error {
    var (
        verr  *pricing.ValidationError
        aerr  *reservation.AvailabilityError
        vferr *reservation.VerificationError
    )
    switch {
    case errors.As(err, &verr):
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error":  "validation_failed",
            "fields": map[string][]string{verr.Field: {verr.Reason}},
        })
    case errors.Is(err, reservation.ErrManualQuote):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{
            "error":        "manual_quote_required",
            "manual_quote": true,
        })
    case errors.As(err, &aerr):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":  "unavailable",
            "reason": aerr.Reason,
        })
    case errors.As(err, &vferr):
        // the stored status is untouched; the client should refresh later
        return c.JSON(http.StatusServiceUnavailable, echo.Map{
            "error":   "payment_verification_failed",
            "message": "payment status unknown, please refresh",
        })
    case errors.Is(err, reservation.ErrPaymentUnavailable):
        logx.Warn(c.Request().Context(), "payment session not opened", logx.Err(err))
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment_unavailable"})
    case errors.Is(err, reservation.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
    case errors.Is(err, reservation.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
    }
    logx.Error(c.Request().Context(), "request failed", logx.Err(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
