package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/sound-rental/internal/handler" // import the handlers that implement business logic
)

// RegisterRoutes registers the probes.  /healthz answers as long as the
// process runs; /readyz also checks the reservation store.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterPublic registers the anonymous pricing endpoints under /v1.  The
// catalogue and the city lookup are read-only and go through the response
// cache; quotes are priced on every call and are rate limited instead.
func RegisterPublic(e *echo.Echo, q *handler.QuoteHandler, cities *handler.CityHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/packages", handler.Catalogue, cache)
	g.GET("/cities", cities.Cities, cache)
	g.POST("/quotes", q.Quote, limit)
}
