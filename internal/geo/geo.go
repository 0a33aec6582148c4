// Package geo suggests delivery cities from the French government commune
// API.  Lookups are best effort: every failure yields an empty result and is
// only logged, never returned to the booking flow.
package geo

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "sort"
    "strings"
    "time"

    "github.com/iliyamo/sound-rental/internal/logx"
)

// AllowedDepartments is the delivery region: Paris and the Île-de-France
// departments.
var AllowedDepartments = map[string]bool{
    "75": true, "77": true, "78": true, "91": true,
    "92": true, "93": true, "94": true, "95": true,
}

// MinPrefix is the shortest prefix worth sending upstream.
const MinPrefix = 2

const maxSuggestions = 10

// Suggestion is one city/postal code pair.
type Suggestion struct {
    City       string `json:"city"`
    PostalCode string `json:"postal_code"`
}

type commune struct {
    Nom             string   `json:"nom"`
    CodeDepartement string   `json:"codeDepartement"`
    CodesPostaux    []string `json:"codesPostaux"`
}

// Client queries geo.api.gouv.fr (or a compatible base URL).
type Client struct {
    base string
    http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
    if timeout <= 0 {
        timeout = 2 * time.Second
    }
    return &Client{
        base: strings.TrimRight(baseURL, "/"),
        http: &http.Client{Timeout: timeout},
    }
}

// SuggestCities returns up to ten suggestions for a city name prefix inside
// the allowed region.  It never returns an error.
func (c *Client) SuggestCities(ctx context.Context, prefix string) []Suggestion {
    prefix = strings.TrimSpace(prefix)
    if len([]rune(prefix)) < MinPrefix {
        return []Suggestion{}
    }
    out, err := c.fetch(ctx, prefix)
    if err != nil {
        logx.Debug(ctx, "city lookup failed", logx.Err(err))
        return []Suggestion{}
    }
    return out
}

func (c *Client) fetch(ctx context.Context, prefix string) ([]Suggestion, error) {
    q := url.Values{}
    q.Set("nom", prefix)
    q.Set("fields", "nom,codesPostaux,codeDepartement")
    q.Set("boost", "population")
    q.Set("limit", "50")
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/communes?"+q.Encode(), nil)
    if err != nil {
        return nil, err
    }
    req.Header.Set("Accept", "application/json")
    resp, err := c.http.Do(req)
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return nil, fmt.Errorf("geo api: status %d", resp.StatusCode)
    }
    var communes []commune
    if err := json.NewDecoder(resp.Body).Decode(&communes); err != nil {
        return nil, fmt.Errorf("geo api: decode: %w", err)
    }
    return filter(communes), nil
}

// filter keeps communes of the allowed departments and flattens their
// postal codes, keeping the upstream ranking.
func filter(communes []commune) []Suggestion {
    out := []Suggestion{}
    seen := map[Suggestion]bool{}
    for _, c := range communes {
        if !AllowedDepartments[c.CodeDepartement] {
            continue
        }
        codes := append([]string(nil), c.CodesPostaux...)
        sort.Strings(codes)
        for _, pc := range codes {
            s := Suggestion{City: c.Nom, PostalCode: pc}
            if seen[s] {
                continue
            }
            seen[s] = true
            out = append(out, s)
            if len(out) == maxSuggestions {
                return out
            }
        }
    }
    return out
}
