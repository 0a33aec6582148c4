package handler // declare the package name; contains HTTP handlers

import (
    "context"   // Pinger receives a request context
    "net/http"  // net/http provides status codes and response helpers
    "time"      // bound the readiness probe

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a simple liveness endpoint used by load balancers and
// monitoring systems to verify that the process is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Ready returns a readiness handler.  It answers 503 while the reservation
// store cannot be reached so that traffic is not routed to an instance that
// would fail every booking.  A nil pinger (in-memory store) is always ready.
func Ready(p Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if p == nil {
            return c.String(http.StatusOK, "ready")
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second) // probes must answer quickly
        defer cancel()
        if err := p.PingContext(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store_unreachable"})
        }
        return c.String(http.StatusOK, "ready")
    }
}
