package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/utils"
)

const bearerPrefix = "Bearer "

// JWTAuth rejects requests without a valid operator bearer token and stores
// the token's subject and role for OperatorID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            header := c.Request().Header.Get(echo.HeaderAuthorization)
            raw, found := strings.CutPrefix(header, bearerPrefix)
            if !found || strings.TrimSpace(raw) == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseOperatorToken(secret, strings.TrimSpace(raw))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ctxOperatorID, claims.Subject)
            c.Set(ctxRole, claims.Role)
            return next(c)
        }
    }
}
