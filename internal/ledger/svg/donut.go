package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Donut renders slices proportionally around a ring. Negative values are
// drawn by magnitude. Income slices get an up-triangle legend icon and cost
// slices a down-triangle.
func Donut(width, height int, slices []Slice, opts DonutOpts) (template.HTML, error) {
	if len(slices) == 0 {
		return "", fmt.Errorf("svg: at least one slice required")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	textColor := fallback(opts.TextColor, "#334155")

	total := 0.0
	for _, s := range slices {
		total += math.Abs(s.Value)
	}

	legendWidth := float64(width) * 0.4
	cx := (float64(width) - legendWidth) / 2
	cy := float64(height) / 2
	outer := math.Min(cx, cy) - 8
	if outer <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	thickness := opts.Thickness
	if thickness <= 0 || thickness >= outer {
		thickness = outer * 0.4
	}
	inner := outer - thickness

	var b strings.Builder
	open(&b, width, height, fallback(opts.Title, "Donut chart"), fallback(opts.Description, "Share of total per category"), "donut")

	if almostEqual(total, 0) {
		b.WriteString(fmt.Sprintf("<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"#e2e8f0\" stroke-width=\"%.2f\"></circle>", cx, cy, outer-thickness/2, thickness))
	} else {
		angle := 0.0
		for i, s := range slices {
			share := math.Abs(s.Value) / total
			if almostEqual(share, 0) {
				continue
			}
			end := angle + share*2*math.Pi
			b.WriteString(fmt.Sprintf("<path class=\"slice %s\" d=\"%s\" fill=\"%s\"><title>%s: %s (%.1f%%)</title></path>",
				esc(sliceKind(s)), arcPath(cx, cy, outer, inner, angle, end), paletteColor(i, s.Color), esc(s.Name), esc(formatTick(s.Value)), share*100))
			angle = end
		}
	}
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"14\" text-anchor=\"middle\">%s</text>", cx, cy+5, textColor, esc(formatTick(netTotal(slices)))))

	legendX := float64(width) - legendWidth + 8
	step := math.Min(20, (float64(height)-16)/float64(len(slices)))
	for i, s := range slices {
		y := 16 + float64(i)*step
		b.WriteString(legendIcon(sliceKind(s), legendX, y, paletteColor(i, s.Color)))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"11\" text-anchor=\"start\">%s</text>", legendX+16, y+4, textColor, esc(s.Name)))
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func sliceKind(s Slice) string {
	if s.Kind != "" {
		return s.Kind
	}
	if s.Value < 0 {
		return SliceCost
	}
	return SliceIncome
}

func netTotal(slices []Slice) float64 {
	var sum float64
	for _, s := range slices {
		if sliceKind(s) == SliceCost {
			sum -= math.Abs(s.Value)
			continue
		}
		sum += s.Value
	}
	return sum
}

// legendIcon draws ▲ for income and ▼ for cost centred on (x, y).
func legendIcon(kind string, x, y float64, color string) string {
	if kind == SliceCost {
		return fmt.Sprintf("<path class=\"legend-cost\" d=\"M%.2f %.2f L%.2f %.2f L%.2f %.2f Z\" fill=\"%s\"></path>", x, y-5, x+10, y-5, x+5, y+4, color)
	}
	return fmt.Sprintf("<path class=\"legend-income\" d=\"M%.2f %.2f L%.2f %.2f L%.2f %.2f Z\" fill=\"%s\"></path>", x+5, y-5, x+10, y+4, x, y+4, color)
}
