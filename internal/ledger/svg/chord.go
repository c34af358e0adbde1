package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Chord renders flows between named nodes placed evenly on a circle. Each
// link is a quadratic curve through the centre whose stroke width follows
// its value. Animated bullets travel along the links when opts.Animate is set.
func Chord(width, height int, links []Link, opts ChordOpts) (template.HTML, error) {
	if len(links) == 0 {
		return "", fmt.Errorf("svg: at least one link required")
	}
	if width <= 0 {
		width = DefaultSquare
	}
	if height <= 0 {
		height = DefaultSquare
	}
	textColor := fallback(opts.TextColor, "#334155")

	nodes := chordNodes(links)
	cx := float64(width) / 2
	cy := float64(height) / 2
	radius := math.Min(cx, cy) - 36
	if radius <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	maxVal := 0.0
	for _, l := range links {
		if v := math.Abs(l.Value); v > maxVal {
			maxVal = v
		}
	}
	if almostEqual(maxVal, 0) {
		maxVal = 1
	}

	type point struct{ x, y float64 }
	pos := make(map[string]point, len(nodes))
	color := make(map[string]string, len(nodes))
	for i, name := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(len(nodes))
		x, y := polar(cx, cy, radius, angle)
		pos[name] = point{x, y}
		color[name] = paletteColor(i, "")
	}

	var b strings.Builder
	open(&b, width, height, fallback(opts.Title, "Flow chart"), fallback(opts.Description, "Flows between participants"), "chord")

	for i, l := range links {
		from, to := pos[l.From], pos[l.To]
		strokeWidth := 1 + 7*math.Abs(l.Value)/maxVal
		pathID := makeID(opts.Title, fmt.Sprintf("link-%d", i))
		d := fmt.Sprintf("M%.2f %.2f Q%.2f %.2f %.2f %.2f", from.x, from.y, cx, cy, to.x, to.y)
		b.WriteString(fmt.Sprintf("<path id=\"%s\" class=\"link\" d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-opacity=\"0.55\" stroke-width=\"%.2f\"><title>%s → %s: %s</title></path>",
			pathID, d, color[l.From], strokeWidth, esc(l.From), esc(l.To), esc(formatTick(l.Value))))
		if opts.Animate {
			dur := 1.5 + 2.5*(1-math.Abs(l.Value)/maxVal)
			b.WriteString(fmt.Sprintf("<circle class=\"bullet\" r=\"3\" fill=\"%s\"><animateMotion dur=\"%.2fs\" repeatCount=\"indefinite\"><mpath href=\"#%s\"></mpath></animateMotion></circle>",
				color[l.From], dur, pathID))
		}
	}

	for _, name := range nodes {
		p := pos[name]
		b.WriteString(fmt.Sprintf("<circle class=\"node\" cx=\"%.2f\" cy=\"%.2f\" r=\"6\" fill=\"%s\"></circle>", p.x, p.y, color[name]))
		anchor := "middle"
		switch {
		case p.x > cx+1:
			anchor = "start"
		case p.x < cx-1:
			anchor = "end"
		}
		lx, ly := polar(cx, cy, radius+12, math.Atan2(p.x-cx, cy-p.y))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"%s\">%s</text>", lx, ly+3, textColor, anchor, esc(name)))
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// chordNodes lists node names in first-seen order.
func chordNodes(links []Link) []string {
	seen := make(map[string]struct{})
	var nodes []string
	for _, l := range links {
		for _, name := range []string{l.From, l.To} {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			nodes = append(nodes, name)
		}
	}
	return nodes
}
