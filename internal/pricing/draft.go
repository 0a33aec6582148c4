package pricing

import (
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/iliyamo/sound-rental/internal/model"
)

// BookingDraft is the in-progress wizard state.  It is a value: every With*
// method returns a new draft and leaves the receiver untouched, so a draft
// can be shared freely between goroutines.
type BookingDraft struct {
    packageID string
    headcount *int
    zone      ZoneInput
    span      model.Span
    addons    []AddonSelection
}

// NewDraft starts a draft for a package.
func NewDraft(packageID string) BookingDraft {
    return BookingDraft{packageID: packageID}
}

func (d BookingDraft) WithPackage(id string) BookingDraft {
    d.packageID = id
    return d
}

// WithHeadcount sets the headcount; nil clears it.
func (d BookingDraft) WithHeadcount(h *int) BookingDraft {
    if h != nil {
        v := *h
        h = &v
    }
    d.headcount = h
    return d
}

func (d BookingDraft) WithZone(z ZoneInput) BookingDraft {
    d.zone = z
    return d
}

func (d BookingDraft) WithSpan(start, end time.Time) BookingDraft {
    d.span = model.Span{Start: start, End: end}
    return d
}

// WithAddon sets the quantity of one add-on; zero removes it.
func (d BookingDraft) WithAddon(code string, qty int) BookingDraft {
    next := make([]AddonSelection, 0, len(d.addons)+1)
    replaced := false
    for _, a := range d.addons {
        if a.Code == code {
            replaced = true
            if qty > 0 {
                next = append(next, AddonSelection{Code: code, Quantity: qty})
            }
            continue
        }
        next = append(next, a)
    }
    if !replaced && qty > 0 {
        next = append(next, AddonSelection{Code: code, Quantity: qty})
    }
    d.addons = next
    return d
}

// Request converts the draft into a quote request.  The returned request
// does not alias the draft's slices.
func (d BookingDraft) Request() QuoteRequest {
    req := QuoteRequest{
        PackageID: d.packageID,
        Zone:      d.zone,
        Span:      d.span,
    }
    if d.headcount != nil {
        v := *d.headcount
        req.Headcount = &v
    }
    if len(d.addons) > 0 {
        req.Addons = append([]AddonSelection(nil), d.addons...)
    }
    return req
}

// Fingerprint identifies the pricing-relevant content of the draft.
func (d BookingDraft) Fingerprint() string {
    var b strings.Builder
    fmt.Fprintf(&b, "%s|", d.packageID)
    if d.headcount != nil {
        fmt.Fprintf(&b, "%d", *d.headcount)
    }
    fmt.Fprintf(&b, "|%s|%s|%s|%d|%d|", d.zone.City, d.zone.PostalCode, d.zone.Address,
        d.span.Start.UnixNano(), d.span.End.UnixNano())
    if !d.span.Start.IsZero() {
        b.WriteString(d.span.Start.Location().String())
    }
    for _, a := range d.addons {
        fmt.Fprintf(&b, "|%s=%d", a.Code, a.Quantity)
    }
    return b.String()
}

// Quoter memoises the quote of the most recent draft.  Recomputing on every
// keystroke is cheap, but repeated renders of an unchanged draft reuse the
// previous result.
type Quoter struct {
    mu    sync.Mutex
    key   string
    quote Quote
    err   error
    valid bool
}

// Quote returns ComputeQuote(d.Request()), reusing the last result when the
// draft has not changed.
func (q *Quoter) Quote(d BookingDraft) (Quote, error) {
    key := d.Fingerprint()
    q.mu.Lock()
    defer q.mu.Unlock()
    if q.valid && q.key == key {
        return q.quote, q.err
    }
    q.quote, q.err = ComputeQuote(d.Request())
    q.key, q.valid = key, true
    return q.quote, q.err
}
