// Package catalog lists the countries a visit can be recorded against.
//
// Two providers back the same Catalog interface: a six-country static table
// used for demos and troubleshooting, and a reference table of all UN member
// states (plus Antarctica) with their continents.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderStatic    = "static"
	ProviderReference = "reference"
)

// UnknownContinent is used when a country's continent cannot be resolved.
const UnknownContinent = "Unknown"

// ErrUnknownProvider is returned by New for an unrecognised provider name.
var ErrUnknownProvider = errors.New("unknown catalog provider")

// Country is a selectable country.
type Country struct {
	Name      string `json:"name"`
	Code      string `json:"alpha_2"`
	Continent string `json:"continent"`
}

// Catalog looks countries up by ISO 3166-1 alpha-2 code.
type Catalog interface {
	// All returns every country in display order.
	All() []Country
	// Lookup finds a country by code, case-insensitively.
	Lookup(code string) (Country, bool)
}

// Table is an in-memory Catalog.
type Table struct {
	countries []Country
	byCode    map[string]int
}

// NewTable builds a Table from countries, keeping their order. Codes are
// normalised to upper case; a repeated code is an error.
func NewTable(countries []Country) (*Table, error) {
	t := &Table{
		countries: make([]Country, 0, len(countries)),
		byCode:    make(map[string]int, len(countries)),
	}
	for _, c := range countries {
		c.Code = NormalizeCode(c.Code)
		if len(c.Code) != 2 {
			return nil, fmt.Errorf("country %q: invalid alpha-2 code %q", c.Name, c.Code)
		}
		if _, dup := t.byCode[c.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %s", c.Code)
		}
		t.byCode[c.Code] = len(t.countries)
		t.countries = append(t.countries, c)
	}
	return t, nil
}

// All implements Catalog.
func (t *Table) All() []Country {
	out := make([]Country, len(t.countries))
	copy(out, t.countries)
	return out
}

// Lookup implements Catalog.
func (t *Table) Lookup(code string) (Country, bool) {
	i, ok := t.byCode[NormalizeCode(code)]
	if !ok {
		return Country{}, false
	}
	return t.countries[i], true
}

// New returns the catalog for the named provider. referenceFile optionally
// points the reference provider at an external YAML file instead of the
// embedded data.
func New(provider, referenceFile string) (Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderStatic:
		return Static(), nil
	case ProviderReference, "":
		if referenceFile != "" {
			return LoadReferenceFile(referenceFile)
		}
		return Reference()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// ByContinent groups a catalog by continent, each group sorted by name.
func ByContinent(c Catalog) map[string][]Country {
	groups := make(map[string][]Country)
	for _, country := range c.All() {
		groups[country.Continent] = append(groups[country.Continent], country)
	}
	for _, list := range groups {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	return groups
}

// Label is the display label used when picking a country, e.g. "Spain (ES)".
func Label(c Country) string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Code)
}

// NormalizeCode trims and upper-cases a country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
