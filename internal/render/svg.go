package render

import (
	"encoding/base64"
	"fmt"
	"strings"

	"countrytimeline/internal/timeline"
)

// SVG renders the layout as a standalone SVG document. Flags are embedded as
// base64 data URIs so the file has no external references.
func SVG(l *timeline.Layout, s Style) []byte {
	f := newFrame(l, s)

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
<defs>
<style>
.title-text { font-family: %s; font-size: %dpx; fill: %s; }
.label-text { font-family: %s; font-size: %dpx; fill: %s; }
.tick-text { font-family: %s; font-size: %dpx; fill: %s; }
</style>
<clipPath id="plot-area"><rect x="%.2f" y="%.2f" width="%.2f" height="%.2f"/></clipPath>
</defs>
`, f.width, f.height, f.width, f.height, s.Background,
		s.FontFamily, s.TitleSize(), s.Text,
		s.FontFamily, s.LabelSize(), s.Text,
		s.FontFamily, s.TickSize(), s.Text,
		f.left, f.top, f.right-f.left, f.bottom-f.top))

	svg.WriteString(`<g clip-path="url(#plot-area)">` + "\n")

	for _, b := range l.Bands {
		y0, y1 := f.Y(b.Y0), f.Y(b.Y1)
		svg.WriteString(fmt.Sprintf(`<rect class="band" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" fill-opacity="%.2f"/>`+"\n",
			f.left, y0, f.right-f.left, y1-y0, s.Band, BandOpacity))
	}

	for _, age := range l.Gridlines {
		x := f.X(float64(age))
		if x < f.left || x > f.right {
			continue
		}
		svg.WriteString(fmt.Sprintf(`<line class="grid" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="1,2" stroke-opacity="%.2f"/>`+"\n",
			x, f.top, x, f.bottom, s.Grid, GridOpacity))
	}

	for _, row := range l.Rows {
		writeBar(&svg, f, row, s)
	}
	for _, row := range l.Rows {
		if row.Flag != nil {
			writeFlag(&svg, f, row)
		}
	}
	svg.WriteString("</g>\n")

	// plot frame
	svg.WriteString(fmt.Sprintf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="none" stroke="%s" stroke-width="1"/>`+"\n",
		f.left, f.top, f.right-f.left, f.bottom-f.top, s.Axis))

	for _, row := range l.Rows {
		y := f.Y(float64(row.Index))
		svg.WriteString(fmt.Sprintf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1"/>`+"\n",
			f.left-5, y, f.left, y, s.Axis))
		svg.WriteString(fmt.Sprintf(`<text class="tick-text" x="%.2f" y="%.2f" text-anchor="end" dominant-baseline="middle">%s</text>`+"\n",
			f.left-8, y, escapeXML(row.Label)))
	}

	for _, age := range f.ticks() {
		x := f.X(float64(age))
		svg.WriteString(fmt.Sprintf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1"/>`+"\n",
			x, f.bottom, x, f.bottom+5, s.Axis))
		svg.WriteString(fmt.Sprintf(`<text class="tick-text" x="%.2f" y="%.2f" text-anchor="middle">%d</text>`+"\n",
			x, f.bottom+8+float64(s.TickSize()), age))
	}

	svg.WriteString(fmt.Sprintf(`<text class="label-text" x="%.2f" y="%d" text-anchor="middle">%s</text>`+"\n",
		(f.left+f.right)/2, f.height-s.LabelSize(), escapeXML(l.XLabel)))
	svg.WriteString(fmt.Sprintf(`<text class="title-text" x="%.2f" y="%.2f" text-anchor="middle">%s</text>`+"\n",
		(f.left+f.right)/2, f.top/2+float64(s.TitleSize())/2, escapeXML(l.Title)))

	svg.WriteString("</svg>\n")
	return []byte(svg.String())
}

// writeBar draws the bar of a row. A negative bar length draws leftwards
// from the visit age.
func writeBar(svg *strings.Builder, f frame, row timeline.Row, s Style) {
	x0 := f.X(row.BarStart)
	x1 := f.X(row.BarStart + row.BarLength)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y := f.Y(float64(row.Index) - timeline.RowHeight/2)
	svg.WriteString(fmt.Sprintf(`<rect class="bar" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" fill-opacity="%.2f"><title>%s</title></rect>`+"\n",
		x0, y, x1-x0, f.RowPixels(), row.Color, s.BarOpacity, escapeXML(row.Label)))
}

// writeFlag stretches the flag image over its extent.
func writeFlag(svg *strings.Builder, f frame, row timeline.Row) {
	e := row.Flag.Extent
	x0, x1 := f.X(e.X0), f.X(e.X1)
	y0, y1 := f.Y(e.Y0), f.Y(e.Y1)
	svg.WriteString(fmt.Sprintf(`<image class="flag" x="%.2f" y="%.2f" width="%.2f" height="%.2f" preserveAspectRatio="none" href="data:image/png;base64,%s"/>`+"\n",
		x0, y0, x1-x0, y1-y0, base64.StdEncoding.EncodeToString(row.Flag.Image)))
}

// escapeXML escapes special XML characters in a string to ensure valid SVG output.
// It replaces XML special characters (&, <, >, ", ') with their corresponding
// XML entity references (&amp;, &lt;, &gt;, &quot;, &apos;) to prevent
// malformed XML when the string is embedded in SVG content.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
