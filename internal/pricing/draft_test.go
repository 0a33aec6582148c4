package pricing

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func timeHours(h int) time.Duration { return time.Duration(h) * time.Hour }

func TestDraftIsImmutable(t *testing.T) {
    h := 60
    d1 := NewDraft("soiree")
    d2 := d1.WithHeadcount(&h)
    h = 10

    assert.Nil(t, d1.Request().Headcount)
    require.NotNil(t, d2.Request().Headcount)
    assert.Equal(t, 60, *d2.Request().Headcount)

    d3 := d2.WithAddon("micro_extra", 1)
    d4 := d3.WithAddon("micro_extra", 3)
    assert.Equal(t, []AddonSelection{{Code: "micro_extra", Quantity: 1}}, d3.Request().Addons)
    assert.Equal(t, []AddonSelection{{Code: "micro_extra", Quantity: 3}}, d4.Request().Addons)
    assert.Empty(t, d4.WithAddon("micro_extra", 0).Request().Addons)
    assert.Empty(t, d2.Request().Addons)
}

func TestDraftFingerprintTracksChanges(t *testing.T) {
    h := 60
    d := NewDraft("soiree").WithHeadcount(&h).WithZone(ZoneInput{PostalCode: "92100"})
    assert.Equal(t, d.Fingerprint(), d.WithZone(ZoneInput{PostalCode: "92100"}).Fingerprint())
    assert.NotEqual(t, d.Fingerprint(), d.WithZone(ZoneInput{PostalCode: "75001"}).Fingerprint())
    assert.NotEqual(t, d.Fingerprint(), d.WithAddon("dj_booth", 1).Fingerprint())
}

func TestQuoterMemoisesLatestDraft(t *testing.T) {
    h := 60
    d := NewDraft("soiree").
        WithHeadcount(&h).
        WithZone(ZoneInput{PostalCode: "92100"}).
        WithSpan(at(2025, 6, 1, 20, 0), at(2025, 6, 1, 23, 30))

    var q Quoter
    first, err := q.Quote(d)
    require.NoError(t, err)
    again, err := q.Quote(d)
    require.NoError(t, err)
    assert.Equal(t, first, again)

    more, err := q.Quote(d.WithAddon("dj_booth", 1))
    require.NoError(t, err)
    assert.Equal(t, first.Totals.TotalCents+12000, more.Totals.TotalCents)

    _, err = q.Quote(d.WithHeadcount(nil))
    assert.Error(t, err)
}
