package model

// Family groups packages that share headcount bands and an equipment pool.
type Family string

const (
    FamilyConference Family = "conference"
    FamilySoiree     Family = "soiree"
    FamilyMariage    Family = "mariage"
)

// Tier is a capacity band.  TierUnknown is returned when no headcount was
// given; callers must not treat it as S.
type Tier string

const (
    TierUnknown Tier = ""
    TierS       Tier = "S"
    TierM       Tier = "M"
    TierL       Tier = "L"
)

// LineItem is one piece of equipment included in a package.
type LineItem struct {
    Label    string `json:"label"`
    Quantity int    `json:"quantity"`
}

// BasePackage is an immutable catalogue entry.  PricesCents holds the price
// of each tier; the S price is the advertised base price.
type BasePackage struct {
    ID           string         `json:"id"`
    Family       Family         `json:"family"`
    Title        string         `json:"title"`
    Description  string         `json:"description"`
    Items        []LineItem     `json:"items"`
    PricesCents  map[Tier]int64 `json:"prices_cents"`
    CautionCents int64          `json:"caution_cents"`
}

// Clone returns a copy that shares no slice or map with p.
func (p BasePackage) Clone() BasePackage {
    p.Items = append([]LineItem(nil), p.Items...)
    prices := make(map[Tier]int64, len(p.PricesCents))
    for t, v := range p.PricesCents {
        prices[t] = v
    }
    p.PricesCents = prices
    return p
}

// BasePriceCents is the price of the default (S) tier.
func (p BasePackage) BasePriceCents() int64 { return p.PricesCents[TierS] }
