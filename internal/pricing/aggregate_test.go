package pricing

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "pgregory.net/rapid"

    "github.com/iliyamo/sound-rental/internal/model"
)

func TestAggregate(t *testing.T) {
    got := Aggregate(25000,
        []Surcharge{{Kind: SurchargeDelivery, AmountCents: 4000}, {Kind: SurchargeInstallation, AmountCents: 8000}},
        []AddonLine{{Code: "micro_extra", Quantity: 2, AmountCents: 3000}},
    )
    assert.Equal(t, Totals{TotalCents: 40000, DepositCents: 12000, BalanceCents: 28000}, got)
}

func TestAggregateRoundingGoesToBalance(t *testing.T) {
    // 30% of 33335 is 10000.5: the deposit rounds up once, the balance
    // takes the complement.
    got := Aggregate(33335, nil, nil)
    assert.Equal(t, int64(10001), got.DepositCents)
    assert.Equal(t, int64(23334), got.BalanceCents)

    // 30% of 33333 is 9999.9.
    got = Aggregate(33333, nil, nil)
    assert.Equal(t, int64(10000), got.DepositCents)
    assert.Equal(t, int64(23333), got.BalanceCents)
}

func TestAggregateDepositPlusBalanceIsTotal(t *testing.T) {
    rapid.Check(t, func(t *rapid.T) {
        base := rapid.Int64Range(0, 10_000_000).Draw(t, "base")
        n := rapid.IntRange(0, 4).Draw(t, "surcharges")
        var ss []Surcharge
        for i := 0; i < n; i++ {
            ss = append(ss, Surcharge{AmountCents: rapid.Int64Range(0, 100_000).Draw(t, "surcharge")})
        }
        var ls []AddonLine
        if rapid.Bool().Draw(t, "addon") {
            ls = append(ls, AddonLine{AmountCents: rapid.Int64Range(0, 100_000).Draw(t, "addon_amount")})
        }
        got := Aggregate(base, ss, ls)
        if got.DepositCents+got.BalanceCents != got.TotalCents {
            t.Fatalf("deposit %d + balance %d != total %d", got.DepositCents, got.BalanceCents, got.TotalCents)
        }
        if got.DepositCents < 0 || got.BalanceCents < 0 {
            t.Fatalf("negative split %+v", got)
        }
    })
}

func TestCaution(t *testing.T) {
    conf := mustPackage(t, "conference")
    soiree := mustPackage(t, "soiree")
    mariage := mustPackage(t, "mariage")

    assert.Equal(t, int64(50000), Caution(conf, model.TierS))
    assert.Equal(t, int64(96000), Caution(soiree, model.TierM))
    assert.Equal(t, int64(180000), Caution(mariage, model.TierL))
    assert.Zero(t, Caution(soiree, model.TierUnknown))
}
