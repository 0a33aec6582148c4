package pricing

import (
    "sort"

    "github.com/iliyamo/sound-rental/internal/model"
)

// All monetary values below are in cents.

// band is a half-open headcount range [Min, Max).  For the last band of a
// family Max is an inclusive capacity limit instead.
type band struct {
    Tier     model.Tier
    Min, Max int
    Capacity string
}

// Bands are contiguous and ordered; a headcount equal to a band's Min
// belongs to that band, so boundaries resolve to the higher tier.
var bands = map[model.Family][]band{
    model.FamilyConference: {
        {model.TierS, 1, 30, "1-29 guests"},
        {model.TierM, 30, 80, "30-79 guests"},
        {model.TierL, 80, 150, "80-150 guests"},
    },
    model.FamilySoiree: {
        {model.TierS, 1, 50, "1-49 guests"},
        {model.TierM, 50, 100, "50-99 guests"},
        {model.TierL, 100, 200, "100-200 guests"},
    },
    model.FamilyMariage: {
        {model.TierS, 1, 80, "1-79 guests"},
        {model.TierM, 80, 150, "80-149 guests"},
        {model.TierL, 150, 250, "150-250 guests"},
    },
}

var packages = []model.BasePackage{
    {
        ID:          "conference",
        Family:      model.FamilyConference,
        Title:       "Pack Conférence",
        Description: "Speech reinforcement for talks, seminars and panels.",
        Items: []model.LineItem{
            {Label: "Active speaker", Quantity: 2},
            {Label: "Wireless handheld microphone", Quantity: 2},
            {Label: "Compact mixer", Quantity: 1},
        },
        PricesCents:  map[model.Tier]int64{model.TierS: 19000, model.TierM: 29000, model.TierL: 45000},
        CautionCents: 50000,
    },
    {
        ID:          "soiree",
        Family:      model.FamilySoiree,
        Title:       "Pack Soirée",
        Description: "Full-range system with subwoofer for parties.",
        Items: []model.LineItem{
            {Label: "Active speaker", Quantity: 2},
            {Label: "Subwoofer", Quantity: 1},
            {Label: "DJ mixer", Quantity: 1},
            {Label: "Wireless handheld microphone", Quantity: 1},
        },
        PricesCents:  map[model.Tier]int64{model.TierS: 25000, model.TierM: 39000, model.TierL: 59000},
        CautionCents: 80000,
    },
    {
        ID:          "mariage",
        Family:      model.FamilyMariage,
        Title:       "Pack Mariage",
        Description: "Ceremony and reception sound with lighting.",
        Items: []model.LineItem{
            {Label: "Active speaker", Quantity: 4},
            {Label: "Subwoofer", Quantity: 2},
            {Label: "Wireless handheld microphone", Quantity: 2},
            {Label: "LED wash light", Quantity: 4},
        },
        PricesCents:  map[model.Tier]int64{model.TierS: 35000, model.TierM: 52000, model.TierL: 79000},
        CautionCents: 120000,
    },
}

// cautionPermille scales a package's base caution by tier.
var cautionPermille = map[model.Tier]int64{
    model.TierS: 1000,
    model.TierM: 1200,
    model.TierL: 1500,
}

var installationFees = map[model.Tier]int64{
    model.TierM: 8000,
    model.TierL: 15000,
}

var deliverySupplements = map[Zone]int64{
    ZoneParis:          0,
    ZonePetiteCouronne: 4000,
    ZoneGrandeCouronne: 8000,
}

var nextDayPickupFees = map[Zone]int64{
    ZoneParis:          5000,
    ZonePetiteCouronne: 7000,
    ZoneGrandeCouronne: 9000,
}

// Addon is an optional extra billed per unit.
type Addon struct {
    Code       string `json:"code"`
    Label      string `json:"label"`
    PriceCents int64  `json:"price_cents"`
}

// MaxAddonQuantity bounds the quantity of any single add-on line.
const MaxAddonQuantity = 20

var addons = map[string]Addon{
    "micro_extra": {Code: "micro_extra", Label: "Extra wireless microphone", PriceCents: 1500},
    "sub_extra":   {Code: "sub_extra", Label: "Extra subwoofer", PriceCents: 6000},
    "light_pack":  {Code: "light_pack", Label: "Lighting pack", PriceCents: 9000},
    "dj_booth":    {Code: "dj_booth", Label: "DJ booth", PriceCents: 12000},
}

// Packages returns the catalogue in a stable order.  The entries are
// copies; changing them does not affect the catalogue.
func Packages() []model.BasePackage {
    out := make([]model.BasePackage, len(packages))
    for i, p := range packages {
        out[i] = p.Clone()
    }
    return out
}

// PackageByID looks up a catalogue entry.
func PackageByID(id string) (model.BasePackage, bool) {
    for _, p := range packages {
        if p.ID == id {
            return p.Clone(), true
        }
    }
    return model.BasePackage{}, false
}

// Addons returns the add-on table sorted by code.
func Addons() []Addon {
    out := make([]Addon, 0, len(addons))
    for _, a := range addons {
        out = append(out, a)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
    return out
}
