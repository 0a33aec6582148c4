package pricing

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/sound-rental/internal/model"
)

func TestCatalogueCannotBeMutatedByCallers(t *testing.T) {
    pkg, ok := PackageByID("soiree")
    require.True(t, ok)
    price := pkg.PricesCents[model.TierM]
    items := len(pkg.Items)
    require.NotZero(t, items)

    pkg.PricesCents[model.TierM] = 1
    pkg.Items[0].Quantity = 999
    for _, p := range Packages() {
        p.PricesCents[model.TierS] = 1
    }
    all := Packages()
    all[0].Items = append(all[0].Items, model.LineItem{Label: "stowaway", Quantity: 1})

    again, _ := PackageByID("soiree")
    assert.Equal(t, price, again.PricesCents[model.TierM])
    assert.NotEqual(t, 999, again.Items[0].Quantity)
    assert.Len(t, again.Items, items)
    for _, p := range Packages() {
        assert.NotEqual(t, int64(1), p.PricesCents[model.TierS], p.ID)
    }
    fresh, _ := PackageByID(all[0].ID)
    assert.NotContains(t, fresh.Items, model.LineItem{Label: "stowaway", Quantity: 1})
}
