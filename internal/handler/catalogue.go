package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/geo"
    "github.com/iliyamo/sound-rental/internal/pricing"
)

// Catalogue handles GET /v1/packages.  The catalogue is static, so the route
// sits behind the response cache.
func Catalogue(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{
        "packages": pricing.Packages(),
        "addons":   pricing.Addons(),
    })
}

// CitySuggester returns city suggestions for a typed prefix.  It never fails;
// an unreachable lookup service yields no suggestions.
type CitySuggester interface {
    SuggestCities(ctx context.Context, prefix string) []geo.Suggestion
}

type CityHandler struct {
    suggester CitySuggester
}

func NewCityHandler(s CitySuggester) *CityHandler { return &CityHandler{suggester: s} }

// Cities handles GET /v1/cities?q=.  It always answers 200.
func (h *CityHandler) Cities(c echo.Context) error {
    out := h.suggester.SuggestCities(c.Request().Context(), c.QueryParam("q"))
    if out == nil {
        out = []geo.Suggestion{}
    }
    return c.JSON(http.StatusOK, echo.Map{"suggestions": out})
}
