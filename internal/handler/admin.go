package handler

import (
    "context"
    "log/slog"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/middleware"
    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/queue"
    "github.com/iliyamo/sound-rental/internal/reservation"
)

// AdminService is the operator view of the reservation state machine.
type AdminService interface {
    List(ctx context.Context, status model.Status, limit int) ([]model.Reservation, error)
    Cancel(ctx context.Context, id, actor string) (reservation.Outcome, error)
    ExpireStale(ctx context.Context) (int, error)
}

// LedgerReader exposes the confirmation ledger totals.
type LedgerReader interface {
    Totals(ctx context.Context) (queue.Totals, error)
}

// AdminHandler groups operator endpoints.  All methods assume that JWT
// authentication and the OPERATOR role check have already been performed by
// middleware.
type AdminHandler struct {
    svc    AdminService
    ledger LedgerReader // may be nil when no ledger is configured
}

func NewAdminHandler(svc AdminService, ledger LedgerReader) *AdminHandler {
    return &AdminHandler{svc: svc, ledger: ledger}
}

// defaultListLimit and maxListLimit bound GET /v1/admin/reservations.
const (
    defaultListLimit = 50
    maxListLimit     = 500
)

// List handles GET /v1/admin/reservations?status=&limit=.  Newest
// reservations come first.
func (h *AdminHandler) List(c echo.Context) error {
    limit := defaultListLimit
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n <= 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{
                "error":  "validation_failed",
                "fields": map[string][]string{"limit": {"must be a positive integer"}},
            })
        }
        limit = min(n, maxListLimit)
    }
    items, err := h.svc.List(c.Request().Context(), model.Status(c.QueryParam("status")), limit)
    if err != nil {
        return writeError(c, err)
    }
    if items == nil {
        items = []model.Reservation{}
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": items, "count": len(items)})
}

// Cancel handles POST /v1/admin/reservations/:id/cancel.  Operators may
// cancel from any status; cancelling twice is a no-op.
func (h *AdminHandler) Cancel(c echo.Context) error {
    id, ok := reservationID(c)
    if !ok {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
    }
    out, err := h.svc.Cancel(c.Request().Context(), id, "operator:"+middleware.OperatorID(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

// Expire handles POST /v1/admin/reservations/expire.  It runs the same sweep
// as the background ticker and reports how many holds were closed.
func (h *AdminHandler) Expire(c echo.Context) error {
    ctx := c.Request().Context()
    n, err := h.svc.ExpireStale(ctx)
    if err != nil {
        return writeError(c, err)
    }
    logx.Info(ctx, "manual expiry sweep", logx.Status("operator", middleware.OperatorID(c)), slog.Int("expired", n))
    return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

// Ledger handles GET /v1/admin/ledger.
func (h *AdminHandler) Ledger(c echo.Context) error {
    if h.ledger == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "ledger_unavailable"})
    }
    t, err := h.ledger.Totals(c.Request().Context())
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, t)
}
