package pricing

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "pgregory.net/rapid"

    "github.com/iliyamo/sound-rental/internal/model"
)

func intp(v int) *int { return &v }

func mustPackage(t testing.TB, id string) model.BasePackage {
    t.Helper()
    p, ok := PackageByID(id)
    require.True(t, ok, "package %s", id)
    return p
}

func TestAdjustTierUnknownHeadcount(t *testing.T) {
    pkg := mustPackage(t, "soiree")
    assert.False(t, AdjustTier(pkg, nil).Known())
    assert.False(t, AdjustTier(pkg, intp(0)).Known())
    assert.False(t, AdjustTier(pkg, intp(-3)).Known())
}

func TestAdjustTierBoundariesResolveToHigherBand(t *testing.T) {
    pkg := mustPackage(t, "soiree")
    cases := []struct {
        headcount int
        tier      model.Tier
        manual    bool
    }{
        {1, model.TierS, false},
        {49, model.TierS, false},
        {50, model.TierM, false},
        {99, model.TierM, false},
        {100, model.TierL, false},
        {200, model.TierL, false},
        {201, model.TierL, true},
    }
    for _, tc := range cases {
        got := AdjustTier(pkg, intp(tc.headcount))
        assert.Equal(t, tc.tier, got.Tier, "headcount %d", tc.headcount)
        assert.Equal(t, tc.manual, got.RequiresManualQuote, "headcount %d", tc.headcount)
        assert.Equal(t, pkg.PricesCents[tc.tier], got.AdjustedPriceCents, "headcount %d", tc.headcount)
    }
}

// Every band of every family is walked at both edges.
func TestAdjustTierEnumeratesAllBands(t *testing.T) {
    for _, pkg := range Packages() {
        bs := bands[pkg.Family]
        require.NotEmpty(t, bs, pkg.ID)
        assert.Equal(t, 1, bs[0].Min, "%s bands must start at 1", pkg.ID)
        for i, b := range bs {
            assert.Equal(t, b.Tier, AdjustTier(pkg, intp(b.Min)).Tier, "%s min of %s", pkg.ID, b.Tier)
            if i > 0 {
                assert.Equal(t, bs[i-1].Max, b.Min, "%s bands must be contiguous", pkg.ID)
                assert.Equal(t, bs[i-1].Tier, AdjustTier(pkg, intp(b.Min-1)).Tier, "%s below min of %s", pkg.ID, b.Tier)
            }
        }
        top := bs[len(bs)-1]
        assert.False(t, AdjustTier(pkg, intp(top.Max)).RequiresManualQuote, pkg.ID)
        assert.True(t, AdjustTier(pkg, intp(top.Max+1)).RequiresManualQuote, pkg.ID)
    }
}

func TestAdjustTierIsMonotonic(t *testing.T) {
    pkgs := Packages()
    rapid.Check(t, func(t *rapid.T) {
        pkg := rapid.SampledFrom(pkgs).Draw(t, "package")
        h1 := rapid.IntRange(1, 400).Draw(t, "h1")
        h2 := rapid.IntRange(h1, 401).Draw(t, "h2")
        a, b := AdjustTier(pkg, &h1), AdjustTier(pkg, &h2)
        if a.AdjustedPriceCents > b.AdjustedPriceCents {
            t.Fatalf("%s: price(%d)=%d > price(%d)=%d", pkg.ID, h1, a.AdjustedPriceCents, h2, b.AdjustedPriceCents)
        }
    })
}

func TestAdjustTierIsDeterministic(t *testing.T) {
    pkgs := Packages()
    rapid.Check(t, func(t *rapid.T) {
        pkg := rapid.SampledFrom(pkgs).Draw(t, "package")
        h := rapid.IntRange(-5, 400).Draw(t, "h")
        if AdjustTier(pkg, &h) != AdjustTier(pkg, &h) {
            t.Fatalf("AdjustTier not deterministic for %d", h)
        }
    })
}
