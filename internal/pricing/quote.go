package pricing

import (
    "github.com/iliyamo/sound-rental/internal/model"
)

// AddonSelection is a requested add-on and its quantity.
type AddonSelection struct {
    Code     string `json:"code"`
    Quantity int    `json:"quantity"`
}

// QuoteRequest gathers every input the price depends on.
type QuoteRequest struct {
    PackageID string           `json:"package_id"`
    Headcount *int             `json:"headcount"`
    Zone      ZoneInput        `json:"zone"`
    Span      model.Span       `json:"span"`
    Addons    []AddonSelection `json:"addons"`
}

// Quote is the priced result of a QuoteRequest.  When ManualQuote is set the
// payable totals are left at zero: the booking must go through a manual
// quotation instead of the automated flow.
type Quote struct {
    Request       QuoteRequest      `json:"request"`
    Package       model.BasePackage `json:"package"`
    Tier          TierAdjustment    `json:"tier"`
    Zone          Zone              `json:"zone"`
    PostalCode    string            `json:"postal_code"`
    Surcharges    []Surcharge       `json:"surcharges"`
    Addons        []AddonLine       `json:"addons"`
    Totals        Totals            `json:"totals"`
    CautionCents  int64             `json:"caution_cents"`
    ManualQuote   bool              `json:"manual_quote"`
    ManualReasons []ManualReason    `json:"manual_reasons,omitempty"`
}

// Headcount returns the declared headcount, or 0 when absent.
func (q Quote) Headcount() int {
    if q.Request.Headcount == nil {
        return 0
    }
    return *q.Request.Headcount
}

// ComputeQuote validates req and prices it.  It has no side effects and
// returns the same quote for the same request.
func ComputeQuote(req QuoteRequest) (Quote, error) {
    pkg, ok := PackageByID(req.PackageID)
    if !ok {
        return Quote{}, invalid("package_id", "unknown package")
    }
    tier := AdjustTier(pkg, req.Headcount)
    if !tier.Known() {
        return Quote{}, invalid("headcount", "headcount is required")
    }
    if !req.Span.Valid() {
        return Quote{}, invalid("span", "end must be after start")
    }
    pc, ok := req.Zone.ResolvedPostalCode()
    if !ok {
        return Quote{}, invalid("postal_code", "expected five digits in the postal code or address")
    }
    lines, err := priceAddons(req.Addons)
    if err != nil {
        return Quote{}, err
    }

    q := Quote{
        Request:      req,
        Package:      pkg,
        Tier:         tier,
        Zone:         ResolveZone(req.Zone),
        PostalCode:   pc,
        Addons:       lines,
        CautionCents: Caution(pkg, tier.Tier),
    }
    if tier.RequiresManualQuote {
        q.ManualReasons = append(q.ManualReasons, ManualAboveTopTier)
    }

    if d, ok := Delivery(q.Zone); ok {
        q.Surcharges = append(q.Surcharges, d)
    } else {
        q.ManualReasons = append(q.ManualReasons, ManualOutOfZone)
    }
    if inst, ok := Installation(tier.Tier); ok {
        q.Surcharges = append(q.Surcharges, inst)
    }
    if s, applies, priced := NextDayPickup(req.Span, q.Zone); applies && priced {
        q.Surcharges = append(q.Surcharges, s)
    }

    if len(q.ManualReasons) > 0 {
        q.ManualQuote = true
        return q, nil
    }
    q.Totals = Aggregate(tier.AdjustedPriceCents, q.Surcharges, lines)
    return q, nil
}

func priceAddons(sel []AddonSelection) ([]AddonLine, error) {
    if len(sel) == 0 {
        return nil, nil
    }
    merged := make(map[string]int, len(sel))
    order := make([]string, 0, len(sel))
    for _, s := range sel {
        if _, ok := addons[s.Code]; !ok {
            return nil, invalid("addons", "unknown add-on "+s.Code)
        }
        if s.Quantity <= 0 {
            return nil, invalid("addons", "quantity must be positive for "+s.Code)
        }
        if _, seen := merged[s.Code]; !seen {
            order = append(order, s.Code)
        }
        merged[s.Code] += s.Quantity
    }
    lines := make([]AddonLine, 0, len(order))
    for _, code := range order {
        qty := merged[code]
        if qty > MaxAddonQuantity {
            return nil, invalid("addons", "too many units of "+code)
        }
        lines = append(lines, AddonLine{Code: code, Quantity: qty, AmountCents: addons[code].PriceCents * int64(qty)})
    }
    return lines, nil
}
