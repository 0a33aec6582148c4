package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sound-rental/internal/handler"
	"github.com/iliyamo/sound-rental/internal/middleware"
	"github.com/iliyamo/sound-rental/internal/utils"
)

// RegisterAdmin registers operator endpoints under /v1/admin.  All routes
// require a valid JWT and the OPERATOR role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator),
	)

	// ---- Reservations ----
	g.GET("/reservations", a.List)
	g.POST("/reservations/expire", a.Expire)
	g.POST("/reservations/:id/cancel", a.Cancel)

	// ---- Ledger ----
	g.GET("/ledger", a.Ledger)
}
