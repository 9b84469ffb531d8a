package timeline

// tab20 is the 20 colour qualitative palette bars are coloured from.
var tab20 = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

// Palette returns n colours sampled evenly across the palette, first entry
// to last. With more than 20 rows neighbouring bars share colours.
func Palette(n int) []string {
	if n <= 0 {
		return nil
	}
	colors := make([]string, n)
	for i := range colors {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		idx := int(t * float64(len(tab20)))
		if idx >= len(tab20) {
			idx = len(tab20) - 1
		}
		colors[i] = tab20[idx]
	}
	return colors
}
