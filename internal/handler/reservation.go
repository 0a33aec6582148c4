package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/payment"
    "github.com/iliyamo/sound-rental/internal/pricing"
    "github.com/iliyamo/sound-rental/internal/reservation"
)

// ReservationService is the part of the reservation state machine used by
// the customer-facing endpoints.
type ReservationService interface {
    Submit(ctx context.Context, q pricing.Quote, email string) (*model.Reservation, payment.Session, error)
    Status(ctx context.Context, id string) (reservation.StatusView, error)
    Confirm(ctx context.Context, id string) (reservation.Outcome, error)
    CancelByCustomer(ctx context.Context, id, email string) (reservation.Outcome, error)
}

// ReservationHandler exposes booking submission and the reconciliation
// endpoints polled by the client after the payment redirect.  None of these
// routes require authentication: the reservation id is an unguessable UUID
// and cancellation additionally requires the booking email.
type ReservationHandler struct {
    svc ReservationService
    loc *time.Location
}

func NewReservationHandler(svc ReservationService, loc *time.Location) *ReservationHandler {
    if loc == nil {
        loc = time.UTC
    }
    return &ReservationHandler{svc: svc, loc: loc}
}

type submitBody struct {
    quoteBody
    Email string `json:"email" validate:"required,email,max=254"`
}

// verifyResponse carries the same status/has_session pair as the status
// endpoint so that a poller can use either answer.
type verifyResponse struct {
    reservation.Outcome
    HasSession bool `json:"has_session"`
}

// reservationID reads the :id path parameter.  Anything that is not a UUID
// cannot name a reservation and is answered with 404.
func reservationID(c echo.Context) (string, bool) {
    id, err := uuid.Parse(c.Param("id"))
    if err != nil {
        return "", false
    }
    return id.String(), true
}

// Submit handles POST /v1/reservations.  The quote is recomputed server side
// from the request; a client-supplied price is never trusted.  On success it
// returns 201 with the stored reservation and the URL of the payment page.
func (h *ReservationHandler) Submit(c echo.Context) error {
    var body submitBody
    if !bindAndValidate(c, &body) {
        return nil
    }
    req, err := body.request(h.loc)
    if err != nil {
        return writeError(c, err)
    }
    q, err := pricing.ComputeQuote(req)
    if err != nil {
        return writeError(c, err)
    }
    if q.ManualQuote {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{
            "error":          "manual_quote_required",
            "manual_quote":   true,
            "manual_reasons": q.ManualReasons,
        })
    }
    res, sess, err := h.svc.Submit(c.Request().Context(), q, body.Email)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "reservation":  res,
        "redirect_url": sess.RedirectURL,
    })
}

// Status handles GET /v1/reservations/:id/status.  It reads the stored
// status only and never contacts the payment provider.
func (h *ReservationHandler) Status(c echo.Context) error {
    id, ok := reservationID(c)
    if !ok {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
    }
    view, err := h.svc.Status(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, view)
}

// Verify handles POST /v1/reservations/:id/verify.  It asks the provider for
// the session status and applies it.  Repeating the call is harmless: once
// the reservation has left AWAITING_PAYMENT the answer is the stored status.
func (h *ReservationHandler) Verify(c echo.Context) error {
    id, ok := reservationID(c)
    if !ok {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
    }
    ctx := c.Request().Context()
    out, err := h.svc.Confirm(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    view, err := h.svc.Status(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    if out.Busy {
        out.Status = view.Status
    }
    return c.JSON(http.StatusOK, verifyResponse{Outcome: out, HasSession: view.HasSession})
}

// Cancel handles POST /v1/reservations/:id/cancel.  The body must carry the
// email the reservation was booked with.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    id, ok := reservationID(c)
    if !ok {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
    }
    var body struct {
        Email string `json:"email" validate:"required,email"`
    }
    if !bindAndValidate(c, &body) {
        return nil
    }
    out, err := h.svc.CancelByCustomer(c.Request().Context(), id, body.Email)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}
