package middleware

import (
    "net/http"
    "slices"

    "github.com/labstack/echo/v4"
)

// RequireRole answers 403 unless the role stored by JWTAuth is one of
// roles.  It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role := Role(c)
            if role == "" || !slices.Contains(roles, role) {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
