/*
Package timeline computes the layout of a "countries visited by age" chart.

A layout is a rendering-library independent description of the chart: one
horizontal bar per visited country running from the age of the first visit to
the current age, a flag placement anchored at the start of each bar, the axis
domain, gridlines, background bands, labels and a summary statistic.
Surfaces in internal/render turn a Layout into SVG or PNG bytes.
*/
package timeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png" // flag images are PNGs
	"math"
	"sort"
	"strconv"
)

// Chart geometry constants, expressed in data units (years on the x axis,
// rows on the y axis).
const (
	// RowHeight is the height of a bar. Bars and flags of adjacent rows touch.
	RowHeight = 1.0

	// FlagStretch widens flags horizontally so they stay readable against an
	// x axis measured in years.
	FlagStretch = 2.5

	// GridlineOverhang is how many integer ages past the current age receive
	// a gridline.
	GridlineOverhang = 5

	// AxisOverhang is the padding added to the current age to get the right
	// edge of the x axis.
	AxisOverhang = 1

	// BandRows is the number of rows grouped under one background band.
	BandRows = 5

	// ChartTitle and XAxisLabel are the fixed chart captions.
	ChartTitle = "Countries visited by age"
	XAxisLabel = "Your age"
)

// ErrNothingToRender is returned when a render is requested with no visits.
// Callers surface it as a warning rather than a hard failure.
var ErrNothingToRender = errors.New("please select at least one country and enter the age you first visited")

// VisitRecord is one visited country and the age at which it was first visited.
type VisitRecord struct {
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"` // ISO 3166-1 alpha-2, upper case
	Continent   string  `json:"continent"`
	VisitAge    float64 `json:"visit_age"`
}

// Extent is a rectangle in data coordinates.
type Extent struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// FlagPlacement positions a flag image over the start of a bar.
type FlagPlacement struct {
	Extent      Extent  `json:"extent"`
	PixelWidth  int     `json:"pixel_width"`
	PixelHeight int     `json:"pixel_height"`
	Aspect      float64 `json:"aspect"`
	Image       []byte  `json:"-"`
}

// Row is the layout of a single bar.
type Row struct {
	Index     int            `json:"row_index"`
	Record    VisitRecord    `json:"record"`
	BarStart  float64        `json:"bar_start"`
	BarLength float64        `json:"bar_length"`
	Color     string         `json:"color"`
	Label     string         `json:"label"`
	Flag      *FlagPlacement `json:"flag,omitempty"`
}

// Band is a translucent background stripe spanning a group of rows.
type Band struct {
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// Warning is a non-fatal problem encountered while laying out a chart.
type Warning struct {
	CountryCode string `json:"country_code"`
	Message     string `json:"message"`
}

func (w Warning) String() string {
	return w.Message
}

// Layout is the complete, renderer independent description of a chart.
//
// Rows are ordered by visit age descending: row 0 is the most recent first
// visit and is drawn at the top (the y axis is inverted).
type Layout struct {
	CurrentAge float64   `json:"current_age"`
	Rows       []Row     `json:"rows"`
	XMin       float64   `json:"x_min"`
	XMax       float64   `json:"x_max"`
	YMin       float64   `json:"y_min"`
	YMax       float64   `json:"y_max"`
	Gridlines  []int     `json:"gridlines"`
	Bands      []Band    `json:"bands"`
	Title      string    `json:"title"`
	XLabel     string    `json:"x_label"`
	Percent    float64   `json:"percent"`
	Summary    string    `json:"summary"`
	Warnings   []Warning `json:"warnings,omitempty"`
}

// Build lays out a chart for the given visits.
//
// images maps upper-case country codes to PNG bytes. A code with no entry
// gets no flag and a warning; so does a code whose bytes cannot be decoded.
// In both cases the bar itself is still laid out.
//
// Build does not clamp visit ages to the current age: a visit age greater than
// currentAge yields a negative bar length. Input validation belongs to the
// caller (see internal/visit).
func Build(records []VisitRecord, currentAge float64, images map[string][]byte) (*Layout, error) {
	if len(records) == 0 {
		return nil, ErrNothingToRender
	}

	sorted := make([]VisitRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VisitAge > sorted[j].VisitAge
	})

	n := len(sorted)
	layout := &Layout{
		CurrentAge: currentAge,
		Rows:       make([]Row, 0, n),
		XMin:       0,
		XMax:       currentAge + AxisOverhang,
		YMin:       -RowHeight / 2,
		YMax:       float64(n) - RowHeight/2,
		Gridlines:  gridlines(currentAge),
		Bands:      bands(n),
		Title:      ChartTitle,
		XLabel:     XAxisLabel,
	}

	colors := Palette(n)
	for i, rec := range sorted {
		row := Row{
			Index:     i,
			Record:    rec,
			BarStart:  rec.VisitAge,
			BarLength: currentAge - rec.VisitAge,
			Color:     colors[i],
			Label:     RowLabel(rec),
		}

		img, ok := images[rec.CountryCode]
		if !ok || len(img) == 0 {
			layout.Warnings = append(layout.Warnings, Warning{
				CountryCode: rec.CountryCode,
				Message:     fmt.Sprintf("Could not download flag for %s", rec.CountryCode),
			})
		} else if placement, err := placeFlag(img, rec.VisitAge, i); err != nil {
			layout.Warnings = append(layout.Warnings, Warning{
				CountryCode: rec.CountryCode,
				Message:     fmt.Sprintf("Could not load flag image for %s: %v", rec.CountryCode, err),
			})
		} else {
			row.Flag = placement
		}

		layout.Rows = append(layout.Rows, row)
	}

	layout.Percent = Percent(sorted)
	layout.Summary = Summary(n, layout.Percent)
	return layout, nil
}

// placeFlag computes the flag extent for a bar starting at age on the given
// row. The flag's left edge sits on the bar start; it is one row high and
// vertically centred on the row.
func placeFlag(img []byte, age float64, row int) (*FlagPlacement, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}

	aspect := float64(cfg.Width) / float64(cfg.Height)
	width := RowHeight * aspect * FlagStretch
	y := float64(row)

	return &FlagPlacement{
		Extent: Extent{
			X0: age,
			X1: age + width,
			Y0: y - RowHeight/2,
			Y1: y + RowHeight/2,
		},
		PixelWidth:  cfg.Width,
		PixelHeight: cfg.Height,
		Aspect:      aspect,
		Image:       img,
	}, nil
}

// gridlines returns every integer age from 0 to the current age plus the
// gridline overhang, inclusive.
func gridlines(currentAge float64) []int {
	last := int(math.Floor(currentAge)) + GridlineOverhang
	if last < 0 {
		return nil
	}
	lines := make([]int, 0, last+1)
	for age := 0; age <= last; age++ {
		lines = append(lines, age)
	}
	return lines
}

func bands(n int) []Band {
	var out []Band
	for i := 0; i < n; i += BandRows {
		out = append(out, Band{
			Y0: float64(i) - RowHeight/2,
			Y1: math.Min(float64(i)+BandRows-RowHeight/2, float64(n)-RowHeight/2),
		})
	}
	return out
}

// Percent returns the number of records divided by the largest visit age,
// as a percentage rounded to one decimal. It is 0 when the largest visit age
// is not positive.
//
// The denominator is the oldest visit age, not the current age.
func Percent(records []VisitRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	maxAge := records[0].VisitAge
	for _, r := range records[1:] {
		if r.VisitAge > maxAge {
			maxAge = r.VisitAge
		}
	}
	if maxAge <= 0 {
		return 0
	}
	p := float64(len(records)) / maxAge * 100
	// one decimal, rounded the way %.1f rounds (ties to even on the exact value)
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 1, 64), 64)
	if err != nil {
		return p
	}
	return rounded
}

// Summary renders the one line textual summary shown under the chart.
func Summary(count int, percent float64) string {
	return fmt.Sprintf("You have visited %d countries. This is %.1f%% of your age.", count, percent)
}

// RowLabel is the y tick label of a row: the country name followed by the
// visit age.
func RowLabel(r VisitRecord) string {
	return fmt.Sprintf("%s (%s)", r.CountryName, FormatAge(r.VisitAge))
}

// FormatAge prints whole ages without decimals and fractional ages with one.
func FormatAge(age float64) string {
	if age == math.Trunc(age) {
		return strconv.FormatFloat(age, 'f', 0, 64)
	}
	return strconv.FormatFloat(age, 'f', 1, 64)
}
