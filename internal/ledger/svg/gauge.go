package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Gauge renders a single progress ring with the percentage of value/max in
// the middle. The ring is clamped to 0..100%, the label is not.
func Gauge(width, height int, value, max float64, opts GaugeOpts) (template.HTML, error) {
	if width <= 0 {
		width = DefaultSquare
	}
	if height <= 0 {
		height = DefaultSquare
	}
	cx := float64(width) / 2
	cy := float64(height) / 2
	outer := math.Min(cx, cy) - 8
	if outer <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	thickness := opts.Thickness
	if thickness <= 0 || thickness >= outer {
		thickness = outer * 0.18
	}
	inner := outer - thickness
	color := fallback(opts.Color, "#22c55e")
	track := fallback(opts.TrackColor, "#e2e8f0")
	textColor := fallback(opts.TextColor, "#334155")

	pct := Percent(value, max)
	fill := math.Max(0, math.Min(pct, 100))

	var b strings.Builder
	open(&b, width, height, fallback(opts.Title, "Gauge"), fallback(opts.Description, "Progress towards target"), "gauge")
	b.WriteString(fmt.Sprintf("<circle class=\"track\" cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.2f\"></circle>", cx, cy, outer-thickness/2, track, thickness))
	if fill > 0 {
		b.WriteString(fmt.Sprintf("<path class=\"progress\" d=\"%s\" fill=\"%s\"></path>", arcPath(cx, cy, outer, inner, 0, fill/100*2*math.Pi), color))
	}
	b.WriteString(fmt.Sprintf("<text class=\"percent\" x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"22\" text-anchor=\"middle\">%.0f%%</text>", cx, cy+6, textColor, pct))
	if opts.Label != "" {
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"11\" text-anchor=\"middle\">%s</text>", cx, cy+24, textColor, esc(opts.Label)))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// Percent returns value as a percentage of max, or 0 when max is not positive.
func Percent(value, max float64) float64 {
	if max <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value / max * 100
}
