package pricing

import "github.com/iliyamo/sound-rental/internal/model"

// depositPercent is the share of the total charged when booking.
const depositPercent = 30

// AddonLine is a priced add-on selection.
type AddonLine struct {
    Code        string `json:"code"`
    Quantity    int    `json:"quantity"`
    AmountCents int64  `json:"amount_cents"`
}

// Totals is the payable breakdown of a quote.  Deposit + Balance == Total.
type Totals struct {
    TotalCents   int64 `json:"total_cents"`
    DepositCents int64 `json:"deposit_cents"`
    BalanceCents int64 `json:"balance_cents"`
}

// Aggregate sums the base price, surcharges and add-ons and splits the
// result into deposit and balance.  The deposit is rounded half up once;
// any rounding difference lands in the balance.
func Aggregate(baseCents int64, surcharges []Surcharge, lines []AddonLine) Totals {
    total := baseCents
    for _, s := range surcharges {
        total += s.AmountCents
    }
    for _, l := range lines {
        total += l.AmountCents
    }
    deposit := roundDiv(total*depositPercent, 100)
    return Totals{TotalCents: total, DepositCents: deposit, BalanceCents: total - deposit}
}

// Caution is the refundable security amount for pkg at tier.  It is not
// derived from the total and is not part of it.
func Caution(pkg model.BasePackage, tier model.Tier) int64 {
    permille, ok := cautionPermille[tier]
    if !ok {
        return 0
    }
    return roundDiv(pkg.CautionCents*permille, 1000)
}

// roundDiv divides non-negative n by d rounding half up.
func roundDiv(n, d int64) int64 {
    return (n + d/2) / d
}
