package timeline

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scenarioRecords() []VisitRecord {
	return []VisitRecord{
		{CountryName: "Spain", CountryCode: "ES", Continent: "Europe", VisitAge: 10},
		{CountryName: "Japan", CountryCode: "JP", Continent: "Asia", VisitAge: 25},
		{CountryName: "United Kingdom", CountryCode: "GB", Continent: "Europe", VisitAge: 0},
	}
}

func TestBuildScenario(t *testing.T) {
	images := map[string][]byte{
		"ES": flagPNG(t, 40, 20),
		"JP": flagPNG(t, 40, 20),
		"GB": flagPNG(t, 40, 20),
	}

	layout, err := Build(scenarioRecords(), 34, images)
	require.NoError(t, err)
	require.Len(t, layout.Rows, 3)

	var names []string
	var lengths []float64
	for i, row := range layout.Rows {
		assert.Equal(t, i, row.Index)
		names = append(names, row.Record.CountryName)
		lengths = append(lengths, row.BarLength)
	}
	assert.Equal(t, []string{"Japan", "Spain", "United Kingdom"}, names)
	assert.Equal(t, []float64{9, 24, 34}, lengths)
	assert.Equal(t, 12.0, layout.Percent)
	assert.Equal(t, "You have visited 3 countries. This is 12.0% of your age.", layout.Summary)
	assert.Empty(t, layout.Warnings)

	assert.Equal(t, 0.0, layout.XMin)
	assert.Equal(t, 35.0, layout.XMax)
	assert.Equal(t, -0.5, layout.YMin)
	assert.Equal(t, 2.5, layout.YMax)
	assert.Equal(t, ChartTitle, layout.Title)
	assert.Equal(t, XAxisLabel, layout.XLabel)
	assert.Equal(t, "Japan (25)", layout.Rows[0].Label)
}

func TestBuildEmpty(t *testing.T) {
	layout, err := Build(nil, 34, nil)
	assert.ErrorIs(t, err, ErrNothingToRender)
	assert.Nil(t, layout)
}

func TestBuildStableSort(t *testing.T) {
	records := []VisitRecord{
		{CountryName: "A", CountryCode: "AA", VisitAge: 5},
		{CountryName: "B", CountryCode: "BB", VisitAge: 20},
		{CountryName: "C", CountryCode: "CC", VisitAge: 5},
	}

	layout, err := Build(records, 30, nil)
	require.NoError(t, err)

	var order []string
	for _, row := range layout.Rows {
		order = append(order, row.Record.CountryName)
	}
	assert.Equal(t, []string{"B", "A", "C"}, order)
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	records := scenarioRecords()
	_, err := Build(records, 34, nil)
	require.NoError(t, err)
	assert.Equal(t, "Spain", records[0].CountryName)
}

func TestBuildBarLengths(t *testing.T) {
	t.Run("bar length is current age minus visit age", func(t *testing.T) {
		records := []VisitRecord{
			{CountryName: "Spain", CountryCode: "ES", VisitAge: 10.5},
			{CountryName: "Japan", CountryCode: "JP", VisitAge: 25.25},
		}
		layout, err := Build(records, 34, nil)
		require.NoError(t, err)
		for _, row := range layout.Rows {
			assert.Equal(t, 34-row.Record.VisitAge, row.BarLength)
			assert.Equal(t, row.Record.VisitAge, row.BarStart)
		}
	})

	t.Run("future visit yields a negative bar", func(t *testing.T) {
		records := []VisitRecord{{CountryName: "Japan", CountryCode: "JP", VisitAge: 40}}
		layout, err := Build(records, 34, nil)
		require.NoError(t, err)
		assert.Equal(t, -6.0, layout.Rows[0].BarLength)
	})
}

func TestBuildFlags(t *testing.T) {
	t.Run("flag extent anchors on bar start", func(t *testing.T) {
		images := map[string][]byte{"JP": flagPNG(t, 40, 20), "ES": flagPNG(t, 30, 20)}
		layout, err := Build(scenarioRecords()[:2], 34, images)
		require.NoError(t, err)

		jp := layout.Rows[0].Flag
		require.NotNil(t, jp)
		assert.Equal(t, Extent{X0: 25, X1: 30, Y0: -0.5, Y1: 0.5}, jp.Extent)
		assert.Equal(t, 2.0, jp.Aspect)
		assert.Equal(t, 40, jp.PixelWidth)
		assert.Equal(t, 20, jp.PixelHeight)

		es := layout.Rows[1].Flag
		require.NotNil(t, es)
		assert.InDelta(t, 10+1.5*2.5, es.Extent.X1, 1e-9)
		assert.Equal(t, 0.5, es.Extent.Y0)
		assert.Equal(t, 1.5, es.Extent.Y1)
	})

	t.Run("missing flag keeps the bar", func(t *testing.T) {
		layout, err := Build(scenarioRecords(), 34, map[string][]byte{"JP": flagPNG(t, 40, 20)})
		require.NoError(t, err)
		require.Len(t, layout.Rows, 3)

		assert.NotNil(t, layout.Rows[0].Flag)
		assert.Nil(t, layout.Rows[1].Flag)
		assert.Nil(t, layout.Rows[2].Flag)
		assert.Equal(t, 24.0, layout.Rows[1].BarLength)

		require.Len(t, layout.Warnings, 2)
		assert.Equal(t, "ES", layout.Warnings[0].CountryCode)
		assert.Equal(t, "Could not download flag for ES", layout.Warnings[0].Message)
		assert.Equal(t, "GB", layout.Warnings[1].CountryCode)
	})

	t.Run("undecodable flag keeps the bar", func(t *testing.T) {
		images := map[string][]byte{"JP": []byte("definitely not a png")}
		layout, err := Build(scenarioRecords()[1:2], 34, images)
		require.NoError(t, err)
		require.Len(t, layout.Rows, 1)
		assert.Nil(t, layout.Rows[0].Flag)
		assert.Equal(t, 9.0, layout.Rows[0].BarLength)

		require.Len(t, layout.Warnings, 1)
		assert.Contains(t, layout.Warnings[0].Message, "Could not load flag image for JP")
	})
}

func TestBuildAxes(t *testing.T) {
	records := make([]VisitRecord, 7)
	for i := range records {
		records[i] = VisitRecord{CountryName: "X", CountryCode: "XX", VisitAge: float64(i)}
	}
	layout, err := Build(records, 34, nil)
	require.NoError(t, err)

	require.Len(t, layout.Gridlines, 40)
	assert.Equal(t, 0, layout.Gridlines[0])
	assert.Equal(t, 39, layout.Gridlines[39])

	assert.Equal(t, []Band{{Y0: -0.5, Y1: 4.5}, {Y0: 4.5, Y1: 6.5}}, layout.Bands)
}

func TestPercent(t *testing.T) {
	cases := []struct {
		name string
		ages []float64
		want float64
	}{
		{"all zero ages take the guard path", []float64{0, 0}, 0},
		{"scenario", []float64{10, 25, 0}, 12},
		{"rounded to one decimal", []float64{3, 7}, 28.6},
		{"fractional max age", []float64{0.5}, 200},
		{"no records", nil, 0},
		{"exact tie rounds to even", []float64{16}, 6.2},
		{"five countries at sixteen", []float64{16, 16, 16, 16, 16}, 31.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := make([]VisitRecord, len(tc.ages))
			for i, age := range tc.ages {
				records[i] = VisitRecord{VisitAge: age}
			}
			assert.Equal(t, tc.want, Percent(records))
		})
	}
}

func TestSummaryRoundsOnce(t *testing.T) {
	layout, err := Build([]VisitRecord{{CountryName: "Spain", CountryCode: "ES", VisitAge: 16}}, 34, nil)
	require.NoError(t, err)
	assert.Equal(t, 6.2, layout.Percent)
	assert.Equal(t, "You have visited 1 countries. This is 6.2% of your age.", layout.Summary)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "25", FormatAge(25))
	assert.Equal(t, "0", FormatAge(0))
	assert.Equal(t, "10.6", FormatAge(10+7.0/12))
	assert.Equal(t, "Spain (10.5)", RowLabel(VisitRecord{CountryName: "Spain", VisitAge: 10.5}))
}

func TestPalette(t *testing.T) {
	assert.Nil(t, Palette(0))
	assert.Equal(t, []string{"#1f77b4"}, Palette(1))
	assert.Equal(t, []string{"#1f77b4", "#9edae5"}, Palette(2))
	assert.Equal(t, []string{"#1f77b4", "#8c564b", "#9edae5"}, Palette(3))
	assert.Len(t, Palette(45), 45)
}
