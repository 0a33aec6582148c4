package pricing

import "strings"

// Zone classifies delivery distance from the warehouse.
type Zone string

const (
    ZoneParis          Zone = "paris"
    ZonePetiteCouronne Zone = "petite_couronne"
    ZoneGrandeCouronne Zone = "grande_couronne"
    ZoneHorsZone       Zone = "hors_zone"
)

// departmentZones maps the two-digit department prefix of a postal code to
// its zone.  Departments not listed are hors_zone.
var departmentZones = map[string]Zone{
    "75": ZoneParis,
    "92": ZonePetiteCouronne,
    "93": ZonePetiteCouronne,
    "94": ZonePetiteCouronne,
    "77": ZoneGrandeCouronne,
    "78": ZoneGrandeCouronne,
    "91": ZoneGrandeCouronne,
    "95": ZoneGrandeCouronne,
}

// ZoneInput is what the wizard collects about the delivery address.
type ZoneInput struct {
    City       string `json:"city"`
    PostalCode string `json:"postal_code"`
    Address    string `json:"address,omitempty"`
}

// ResolveZone classifies an address.  It never fails: anything that does not
// yield a usable postal code resolves to ZoneHorsZone so that ambiguity
// always ends in a manual quotation rather than a wrong price.
func ResolveZone(in ZoneInput) Zone {
    pc, ok := in.ResolvedPostalCode()
    if !ok {
        return ZoneHorsZone
    }
    if z, found := departmentZones[pc[:2]]; found {
        return z
    }
    return ZoneHorsZone
}

// ResolvedPostalCode returns the postal code the zone is derived from: the
// PostalCode field when it holds five digits, otherwise the first five-digit
// run in Address and then City.
func (in ZoneInput) ResolvedPostalCode() (string, bool) {
    if pc, ok := NormalizePostalCode(in.PostalCode); ok {
        return pc, true
    }
    return findPostalCode(in.Address + " " + in.City)
}

// NormalizePostalCode strips whitespace and reports whether what remains is
// exactly five ASCII digits.
func NormalizePostalCode(raw string) (string, bool) {
    s := strings.Join(strings.Fields(raw), "")
    if len(s) != 5 {
        return s, false
    }
    for i := 0; i < len(s); i++ {
        if s[i] < '0' || s[i] > '9' {
            return s, false
        }
    }
    return s, true
}

// findPostalCode returns the first run of exactly five digits in free text.
func findPostalCode(text string) (string, bool) {
    run := 0
    for i := 0; i <= len(text); i++ {
        if i < len(text) && text[i] >= '0' && text[i] <= '9' {
            run++
            continue
        }
        if run == 5 {
            return text[i-5 : i], true
        }
        run = 0
    }
    return "", false
}

// DeliverySupplement returns the supplement for z.  The second result is
// false for hors_zone, which has no automatic price.
func DeliverySupplement(z Zone) (int64, bool) {
    v, ok := deliverySupplements[z]
    return v, ok
}
