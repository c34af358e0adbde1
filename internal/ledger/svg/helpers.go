package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return fmt.Sprintf("%s-%s", cleaned, suffix)
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	default:
		if almostEqual(v, math.Round(v)) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%.2f", v)
	}
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

// open writes the accessible svg root element with title and description.
func open(b *strings.Builder, width, height int, title, desc, kind string) {
	titleID := makeID(title, kind+"-title")
	descID := makeID(title, kind+"-desc")
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID))
	b.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, esc(title)))
	b.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, esc(desc)))
}

// polar converts an angle in radians, measured clockwise from 12 o'clock, to
// cartesian coordinates around (cx, cy).
func polar(cx, cy, r, angle float64) (float64, float64) {
	return cx + r*math.Sin(angle), cy - r*math.Cos(angle)
}

// arcPath draws a ring segment between two angles.
func arcPath(cx, cy, outer, inner, start, end float64) string {
	if end-start >= 2*math.Pi-1e-6 {
		end = start + 2*math.Pi - 1e-4
	}
	large := 0
	if end-start > math.Pi {
		large = 1
	}
	x1, y1 := polar(cx, cy, outer, start)
	x2, y2 := polar(cx, cy, outer, end)
	x3, y3 := polar(cx, cy, inner, end)
	x4, y4 := polar(cx, cy, inner, start)
	return fmt.Sprintf("M%.2f %.2f A%.2f %.2f 0 %d 1 %.2f %.2f L%.2f %.2f A%.2f %.2f 0 %d 0 %.2f %.2f Z",
		x1, y1, outer, outer, large, x2, y2, x3, y3, inner, inner, large, x4, y4)
}

// Empty renders a placeholder for a chart whose series has no entries.
func Empty(width, height int, title string) template.HTML {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	var b strings.Builder
	open(&b, width, height, fallback(title, "Chart"), "No data for this period", "empty")
	b.WriteString(fmt.Sprintf("<text class=\"empty\" x=\"%.2f\" y=\"%.2f\" fill=\"#94a3b8\" font-size=\"14\" text-anchor=\"middle\">No data</text>", float64(width)/2, float64(height)/2))
	b.WriteString("</svg>")
	return template.HTML(b.String())
}
