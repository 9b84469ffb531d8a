package render

import (
	"bytes"
	"fmt"
	"image"
	stddraw "image/draw"
	"image/png"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/draw"

	"countrytimeline/internal/timeline"
)

// PNG renders the layout as a PNG image. Shapes and text are drawn with the
// go-chart raster renderer; flags are scaled into place afterwards.
func PNG(l *timeline.Layout, s Style) ([]byte, error) {
	f := newFrame(l, s)

	r, err := chart.PNG(f.width, f.height)
	if err != nil {
		return nil, fmt.Errorf("create png renderer: %w", err)
	}
	// font sizes are in pixels
	r.SetDPI(72)

	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	r.SetFont(font)

	fillRect(r, 0, 0, float64(f.width), float64(f.height), hexColor(s.Background, 1))

	for _, b := range l.Bands {
		fillRect(r, f.left, f.Y(b.Y0), f.right, f.Y(b.Y1), hexColor(s.Band, BandOpacity))
	}

	r.SetStrokeColor(hexColor(s.Grid, GridOpacity))
	r.SetStrokeWidth(0.5)
	r.SetStrokeDashArray([]float64{1, 2})
	for _, age := range l.Gridlines {
		x := f.X(float64(age))
		if x < f.left || x > f.right {
			continue
		}
		r.MoveTo(px(x), px(f.top))
		r.LineTo(px(x), px(f.bottom))
		r.Stroke()
	}
	r.SetStrokeDashArray(nil)

	for _, row := range l.Rows {
		x0 := f.clampX(f.X(row.BarStart))
		x1 := f.clampX(f.X(row.BarStart + row.BarLength))
		if x1 < x0 {
			x0, x1 = x1, x0
		}
		y0 := f.Y(float64(row.Index) - timeline.RowHeight/2)
		fillRect(r, x0, y0, x1, y0+f.RowPixels(), hexColor(row.Color, s.BarOpacity))
	}

	// plot frame
	r.SetStrokeColor(hexColor(s.Axis, 1))
	r.SetStrokeWidth(1)
	r.MoveTo(px(f.left), px(f.top))
	r.LineTo(px(f.right), px(f.top))
	r.LineTo(px(f.right), px(f.bottom))
	r.LineTo(px(f.left), px(f.bottom))
	r.Close()
	r.Stroke()

	text := hexColor(s.Text, 1)
	r.SetFontColor(text)

	r.SetFontSize(float64(s.TickSize()))
	for _, row := range l.Rows {
		y := f.Y(float64(row.Index))
		r.MoveTo(px(f.left-5), px(y))
		r.LineTo(px(f.left), px(y))
		r.Stroke()
		box := r.MeasureText(row.Label)
		r.Text(row.Label, px(f.left-8)-box.Width(), px(y)+box.Height()/2)
	}
	for _, age := range f.ticks() {
		x := f.X(float64(age))
		r.MoveTo(px(x), px(f.bottom))
		r.LineTo(px(x), px(f.bottom+5))
		r.Stroke()
		label := strconv.Itoa(age)
		box := r.MeasureText(label)
		r.Text(label, px(x)-box.Width()/2, px(f.bottom+8)+box.Height())
	}

	r.SetFontSize(float64(s.LabelSize()))
	box := r.MeasureText(l.XLabel)
	r.Text(l.XLabel, px((f.left+f.right)/2)-box.Width()/2, f.height-s.LabelSize())

	r.SetFontSize(float64(s.TitleSize()))
	box = r.MeasureText(l.Title)
	r.Text(l.Title, px((f.left+f.right)/2)-box.Width()/2, px(f.top/2)+box.Height()/2)

	var base bytes.Buffer
	if err := r.Save(&base); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}

	canvas, err := toRGBA(&base)
	if err != nil {
		return nil, err
	}
	compositeFlags(canvas, f, l.Rows)

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// compositeFlags scales each flag over its extent. Drawing goes through a
// sub-image of the plot area so flags that run past the right edge of the
// axis are cut off there.
func compositeFlags(canvas *image.RGBA, f frame, rows []timeline.Row) {
	plot := image.Rect(px(f.left), px(f.top), px(f.right), px(f.bottom))
	dst, ok := canvas.SubImage(plot).(*image.RGBA)
	if !ok {
		return
	}
	for _, row := range rows {
		if row.Flag == nil {
			continue
		}
		src, err := png.Decode(bytes.NewReader(row.Flag.Image))
		if err != nil {
			// Build already decoded the header; a corrupt body only loses the flag
			continue
		}
		e := row.Flag.Extent
		rect := image.Rect(px(f.X(e.X0)), px(f.Y(e.Y0)), px(f.X(e.X1)), px(f.Y(e.Y1)))
		draw.BiLinear.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)
	}
}

func toRGBA(buf *bytes.Buffer) (*image.RGBA, error) {
	img, err := png.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	stddraw.Draw(rgba, b, img, b.Min, stddraw.Src)
	return rgba, nil
}

func fillRect(r chart.Renderer, x0, y0, x1, y1 float64, c drawing.Color) {
	r.SetFillColor(c)
	r.SetStrokeColor(drawing.ColorTransparent)
	r.SetStrokeWidth(0)
	r.MoveTo(px(x0), px(y0))
	r.LineTo(px(x1), px(y0))
	r.LineTo(px(x1), px(y1))
	r.LineTo(px(x0), px(y1))
	r.Close()
	r.Fill()
}

// hexColor parses "#rrggbb" and applies the opacity.
func hexColor(hex string, opacity float64) drawing.Color {
	c := drawing.ColorFromHex(hex)
	return c.WithAlpha(uint8(math.Round(opacity * 255)))
}

func px(v float64) int {
	return int(math.Round(v))
}
