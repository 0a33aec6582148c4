package pricing

import "github.com/iliyamo/sound-rental/internal/model"

// TierAdjustment is the capacity tier a headcount lands in for a package.
// It is derived on demand and never stored.
type TierAdjustment struct {
    Tier                model.Tier `json:"tier"`
    Capacity            string     `json:"capacity"`
    AdjustedPriceCents  int64      `json:"adjusted_price_cents"`
    RequiresManualQuote bool       `json:"requires_manual_quote"`
}

// Known reports whether a tier was resolved.
func (t TierAdjustment) Known() bool { return t.Tier != model.TierUnknown }

// AdjustTier resolves the tier for headcount.  A nil or non-positive
// headcount yields the unknown sentinel.  A headcount above the top band's
// capacity returns the top tier at its own price with RequiresManualQuote
// set; prices are never extrapolated.
func AdjustTier(pkg model.BasePackage, headcount *int) TierAdjustment {
    if headcount == nil || *headcount <= 0 {
        return TierAdjustment{}
    }
    bs := bands[pkg.Family]
    if len(bs) == 0 {
        return TierAdjustment{}
    }
    h := *headcount
    top := bs[len(bs)-1]
    if h > top.Max {
        return TierAdjustment{
            Tier:                top.Tier,
            Capacity:            top.Capacity,
            AdjustedPriceCents:  pkg.PricesCents[top.Tier],
            RequiresManualQuote: true,
        }
    }
    for i, b := range bs {
        last := i == len(bs)-1
        if h >= b.Min && (h < b.Max || (last && h <= b.Max)) {
            return TierAdjustment{
                Tier:               b.Tier,
                Capacity:           b.Capacity,
                AdjustedPriceCents: pkg.PricesCents[b.Tier],
            }
        }
    }
    // Unreachable while bands start at 1 and are contiguous.
    return TierAdjustment{}
}
