package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/countries.yaml
var embeddedReference []byte

// ReferenceData is the on-disk shape of the reference country table.
//
// Each country carries a continent code which is resolved through
// Continents; Overrides map a country code straight to a continent name and
// take precedence. Codes that resolve to nothing get UnknownContinent.
type ReferenceData struct {
	Continents map[string]string `yaml:"continents"` // continent code -> name, e.g. "EU": "Europe"
	Overrides  map[string]string `yaml:"overrides"`  // country code -> continent name
	Countries  []struct {
		Code      string `yaml:"code"`      // ISO 3166-1 alpha-2
		Name      string `yaml:"name"`      // short display name
		Continent string `yaml:"continent"` // continent code, may be empty
	} `yaml:"countries"`
}

// Reference returns the catalog built from the embedded reference data.
func Reference() (*Table, error) {
	return ParseReference(embeddedReference)
}

// LoadReferenceFile reads reference data from a YAML file.
func LoadReferenceFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading reference data: %w", err)
	}
	return ParseReference(data)
}

// ParseReference decodes reference data and builds a catalog sorted by name.
func ParseReference(data []byte) (*Table, error) {
	var ref ReferenceData
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("error parsing reference data: %w", err)
	}
	if len(ref.Countries) == 0 {
		return nil, fmt.Errorf("reference data lists no countries")
	}

	countries := make([]Country, 0, len(ref.Countries))
	for _, c := range ref.Countries {
		code := NormalizeCode(c.Code)
		countries = append(countries, Country{
			Name:      c.Name,
			Code:      code,
			Continent: ref.continentOf(code, c.Continent),
		})
	}
	sort.SliceStable(countries, func(i, j int) bool {
		return countries[i].Name < countries[j].Name
	})
	return NewTable(countries)
}

func (r ReferenceData) continentOf(code, continentCode string) string {
	if name, ok := r.Overrides[code]; ok {
		return name
	}
	if name, ok := r.Continents[NormalizeCode(continentCode)]; ok {
		return name
	}
	return UnknownContinent
}
