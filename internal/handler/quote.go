package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/pricing"
)

// quoteBody is the wire form of a quote request.  Times may carry an offset
// (RFC 3339) or be given as local wall-clock time, which is then read in the
// business timezone.  The next-day pickup rule is evaluated in that zone, so
// offsets are converted to it as well.
type quoteBody struct {
    PackageID  string                   `json:"package_id" validate:"required,max=64"`
    Headcount  *int                     `json:"headcount"`
    City       string                   `json:"city" validate:"max=120"`
    PostalCode string                   `json:"postal_code" validate:"max=16"`
    Address    string                   `json:"address" validate:"max=300"`
    StartsAt   string                   `json:"starts_at" validate:"required"`
    EndsAt     string                   `json:"ends_at" validate:"required"`
    Addons     []pricing.AddonSelection `json:"addons" validate:"max=10"`
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

func parseEventTime(raw string, loc *time.Location) (time.Time, bool) {
    raw = strings.TrimSpace(raw)
    if t, err := time.Parse(time.RFC3339, raw); err == nil {
        return t.In(loc), true
    }
    for _, layout := range localLayouts {
        if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
            return t, true
        }
    }
    return time.Time{}, false
}

// request converts the body into a pricing request.  Only time parsing can
// fail here; everything else is validated by pricing.ComputeQuote.
func (b quoteBody) request(loc *time.Location) (pricing.QuoteRequest, error) {
    start, ok := parseEventTime(b.StartsAt, loc)
    if !ok {
        return pricing.QuoteRequest{}, &pricing.ValidationError{Field: "starts_at", Reason: "must be RFC 3339 or YYYY-MM-DDTHH:MM"}
    }
    end, ok := parseEventTime(b.EndsAt, loc)
    if !ok {
        return pricing.QuoteRequest{}, &pricing.ValidationError{Field: "ends_at", Reason: "must be RFC 3339 or YYYY-MM-DDTHH:MM"}
    }
    return pricing.QuoteRequest{
        PackageID: strings.TrimSpace(b.PackageID),
        Headcount: b.Headcount,
        Zone: pricing.ZoneInput{
            City:       strings.TrimSpace(b.City),
            PostalCode: strings.TrimSpace(b.PostalCode),
            Address:    strings.TrimSpace(b.Address),
        },
        Span:   model.Span{Start: start, End: end},
        Addons: b.Addons,
    }, nil
}

// QuoteHandler prices booking requests.  It holds no state besides the
// business timezone.
type QuoteHandler struct {
    loc *time.Location
}

// NewQuoteHandler returns a QuoteHandler reading local times in loc.  A nil
// loc means UTC.
func NewQuoteHandler(loc *time.Location) *QuoteHandler {
    if loc == nil {
        loc = time.UTC
    }
    return &QuoteHandler{loc: loc}
}

// Quote handles POST /v1/quotes.  A quote that needs a manual estimate is
// still a 200: the client shows the manual path instead of a price.
func (h *QuoteHandler) Quote(c echo.Context) error {
    var body quoteBody
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
    return c.JSON(http.StatusOK, q)
}
