/*
Package render draws a timeline.Layout as an SVG document or a PNG image.

Both surfaces share one pixel geometry (see frame): the canvas is Width
pixels wide and RowHeight pixels per bar tall, never less than MinHeight.
The plot area sits inside the margins, the left margin growing to fit the
longest row label. Data coordinates map linearly into the plot with the y
axis inverted, so row 0 is drawn at the top.
*/
package render

import (
	"fmt"
	"math"
	"strings"

	"countrytimeline/internal/platform/config"
	"countrytimeline/internal/timeline"
)

// Format is an output image format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg" or "png", case-insensitively. An empty string is
// SVG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want svg or png)", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Encode renders the layout in the given format.
func Encode(f Format, l *timeline.Layout, s Style) ([]byte, error) {
	switch f {
	case FormatPNG:
		return PNG(l, s)
	case FormatSVG:
		return SVG(l, s), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
}

// Translucency of the decorative layers.
const (
	BandOpacity = 0.15
	GridOpacity = 0.7
)

// Style holds every pixel level choice of the chart surfaces.
type Style struct {
	Width        int
	RowHeight    int
	MinHeight    int
	MarginTop    int
	MarginBottom int
	MarginLeft   int
	MarginRight  int
	BarOpacity   float64
	FontFamily   string
	FontSize     int
	Background   string
	Grid         string
	Band         string
	Text         string
	Axis         string
}

// NewStyle copies the chart section of the configuration.
func NewStyle(c config.Chart) Style {
	return Style{
		Width:        c.Width,
		RowHeight:    c.RowHeight,
		MinHeight:    c.MinHeight,
		MarginTop:    c.MarginTop,
		MarginBottom: c.MarginBottom,
		MarginLeft:   c.MarginLeft,
		MarginRight:  c.MarginRight,
		BarOpacity:   c.BarOpacity,
		FontFamily:   c.Font.Family,
		FontSize:     c.Font.Size,
		Background:   c.Colors.Background,
		Grid:         c.Colors.Grid,
		Band:         c.Colors.Band,
		Text:         c.Colors.Text,
		Axis:         c.Colors.Axis,
	}
}

// DefaultStyle is NewStyle of the default configuration.
func DefaultStyle() Style {
	return NewStyle(config.Default().Chart)
}

// TitleSize and LabelSize are the caption font sizes relative to the base
// font size.
func (s Style) TitleSize() int { return s.FontSize + 4 }
func (s Style) LabelSize() int { return s.FontSize }
func (s Style) TickSize() int  { return s.FontSize - 2 }

// CanvasSize returns the pixel size of the image for a chart with n rows.
func (s Style) CanvasSize(n int) (width, height int) {
	return s.Width, max(s.MinHeight, n*s.RowHeight)
}

// frame maps data coordinates of a layout to canvas pixels.
type frame struct {
	layout *timeline.Layout
	width  int
	height int

	// plot area in pixels
	left, top, right, bottom float64
}

func newFrame(l *timeline.Layout, s Style) frame {
	w, h := s.CanvasSize(len(l.Rows))

	left := s.MarginLeft
	for _, row := range l.Rows {
		// label width plus tick and padding
		if need := estimateTextWidth(row.Label, s.TickSize()) + 20; need > left {
			left = need
		}
	}
	// keep at least a quarter of the canvas for the plot
	if limit := w - s.MarginRight - w/4; left > limit {
		left = limit
	}

	return frame{
		layout: l,
		width:  w,
		height: h,
		left:   float64(left),
		top:    float64(s.MarginTop),
		right:  float64(w - s.MarginRight),
		bottom: float64(h - s.MarginBottom),
	}
}

// X maps an age to a horizontal pixel position.
func (f frame) X(age float64) float64 {
	span := f.layout.XMax - f.layout.XMin
	if span <= 0 {
		return f.left
	}
	return f.left + (age-f.layout.XMin)/span*(f.right-f.left)
}

// Y maps a row coordinate to a vertical pixel position. YMin is at the top.
func (f frame) Y(row float64) float64 {
	span := f.layout.YMax - f.layout.YMin
	if span <= 0 {
		return f.top
	}
	return f.top + (row-f.layout.YMin)/span*(f.bottom-f.top)
}

// RowPixels is the pixel height of one row.
func (f frame) RowPixels() float64 {
	return f.Y(timeline.RowHeight) - f.Y(0)
}

// clampX limits a pixel x position to the plot area.
func (f frame) clampX(x float64) float64 {
	return math.Min(math.Max(x, f.left), f.right)
}

// ticks returns the x tick positions: multiples of a step chosen so the axis
// carries at most a dozen labels.
func (f frame) ticks() []int {
	maxAge := int(math.Floor(f.layout.XMax))
	step := 1
	for _, s := range []int{1, 2, 5, 10, 20, 50} {
		step = s
		if maxAge/s <= 12 {
			break
		}
	}
	var out []int
	for t := 0; t <= maxAge; t += step {
		if float64(t) >= f.layout.XMin {
			out = append(out, t)
		}
	}
	return out
}

// estimateTextWidth estimates the width of text in pixels based on character count
func estimateTextWidth(text string, fontSize int) int {
	// Rough estimation: average character width is about 0.6 * font size
	avgCharWidth := float64(fontSize) * 0.6
	return int(float64(len([]rune(text))) * avgCharWidth)
}
