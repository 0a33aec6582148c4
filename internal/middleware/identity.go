package middleware

// identity.go holds the helpers that read the caller identity JWTAuth stored
// in the Echo context.  Public routes carry no token, so the helpers fall
// back to fixed placeholders instead of failing.

import (
    "github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth.
const (
    ctxOperatorID = "operator_id"
    ctxRole       = "role"
)

// OperatorID returns the authenticated operator's subject claim, or
// "guest" when the request is not authenticated.
func OperatorID(c echo.Context) string {
    if v, ok := c.Get(ctxOperatorID).(string); ok && v != "" {
        return v
    }
    return "guest"
}

// Role returns the role claim stored by JWTAuth, or "" when absent.
func Role(c echo.Context) string {
    v, _ := c.Get(ctxRole).(string)
    return v
}
