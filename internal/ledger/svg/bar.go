package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// StackedBars renders one stacked column per category. Positive values stack
// upwards from the zero line, negative values stack downwards.
func StackedBars(width, height int, categories []string, series []BarSeries, opts BarOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: at least one series required")
	}
	if len(categories) == 0 {
		return "", fmt.Errorf("svg: categories required")
	}
	for _, s := range series {
		if len(s.Data) != len(categories) {
			return "", fmt.Errorf("svg: series %q length must match categories", s.Name)
		}
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")

	// extra room at the top for the legend and left for tick labels
	left := padding * 2
	top := padding + 14
	chartWidth := float64(width) - left - padding
	chartHeight := float64(height) - top - padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	minVal, maxVal := stackBounds(categories, series)
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	scale := chartHeight / (maxVal - minVal)
	zeroY := top + chartHeight - (0-minVal)*scale

	groupWidth := chartWidth / float64(len(categories))
	barWidth := groupWidth * 0.6

	var b strings.Builder
	open(&b, width, height, fallback(opts.Title, "Stacked bar chart"), fallback(opts.Description, "Stacked totals per category"), "bar")

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		value := minVal + (maxVal-minVal)*ratio
		y := top + chartHeight - ratio*chartHeight
		b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", left, y, left+chartWidth, y, gridColor))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", left-6, y+4, axisColor, esc(formatTick(value))))
	}

	b.WriteString(fmt.Sprintf("<g stroke=\"%s\" aria-label=\"Axes\">", axisColor))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", left, top, left, top+chartHeight))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", left, zeroY, left+chartWidth, zeroY))
	b.WriteString("</g>")

	for i, category := range categories {
		x := left + float64(i)*groupWidth + (groupWidth-barWidth)/2
		up, down := zeroY, zeroY
		for si, s := range series {
			v := s.Data[i]
			if almostEqual(v, 0) {
				continue
			}
			h := v * scale
			var y float64
			if v > 0 {
				up -= h
				y = up
			} else {
				h = -h
				y = down
				down += h
			}
			b.WriteString(fmt.Sprintf("<rect class=\"bar\" x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" aria-label=\"%s %s\"><title>%s: %s</title></rect>",
				x, y, barWidth, h, paletteColor(si, s.Color), esc(s.Name), esc(category), esc(s.Name), esc(formatTick(v))))
		}
		center := left + float64(i)*groupWidth + groupWidth/2
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", center, top+chartHeight+14, axisColor, esc(category)))
	}

	legendX := left
	for si, s := range series {
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", legendX, padding/2, paletteColor(si, s.Color)))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+14, padding/2+9, axisColor, esc(s.Name)))
		legendX += 14 + float64(len(s.Name))*6 + 16
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// stackBounds returns the lowest negative stack and highest positive stack,
// always including zero.
func stackBounds(categories []string, series []BarSeries) (float64, float64) {
	minVal, maxVal := 0.0, 0.0
	for i := range categories {
		pos, neg := 0.0, 0.0
		for _, s := range series {
			if v := s.Data[i]; v > 0 {
				pos += v
			} else {
				neg += v
			}
		}
		if pos > maxVal {
			maxVal = pos
		}
		if neg < minVal {
			minVal = neg
		}
	}
	return minVal, maxVal
}
