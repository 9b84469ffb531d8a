package catalog

// staticCountries is the small hardcoded list used for troubleshooting.
var staticCountries = []Country{
	{Name: "United Kingdom", Code: "GB", Continent: "Europe"},
	{Name: "Spain", Code: "ES", Continent: "Europe"},
	{Name: "Japan", Code: "JP", Continent: "Asia"},
	{Name: "South Africa", Code: "ZA", Continent: "Africa"},
	{Name: "United States", Code: "US", Continent: "North America"},
	{Name: "Australia", Code: "AU", Continent: "Oceania"},
}

// Static returns the six-country catalog.
func Static() *Table {
	t, err := NewTable(staticCountries)
	if err != nil {
		panic(err) // static data is known good
	}
	return t
}
