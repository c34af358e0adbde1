package svg

// BarSeries is one named stack layer of a stacked bar chart.
type BarSeries struct {
	Name  string
	Color string
	Data  []float64
}

// BarOpts customises the stacked bar renderer.
type BarOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// Slice kinds distinguish income from cost legend icons.
const (
	SliceIncome = "income"
	SliceCost   = "cost"
)

// Slice is one donut segment.
type Slice struct {
	Name  string
	Value float64
	Kind  string
	Color string
}

// DonutOpts customises the donut renderer.
type DonutOpts struct {
	Title       string
	Description string
	TextColor   string
	Thickness   float64
}

// Link is one weighted chord flow.
type Link struct {
	From  string
	To    string
	Value float64
}

// ChordOpts customises the chord renderer.
type ChordOpts struct {
	Title       string
	Description string
	TextColor   string
	Animate     bool
}

// GaugeOpts customises the gauge renderer.
type GaugeOpts struct {
	Title       string
	Description string
	Label       string
	Color       string
	TrackColor  string
	TextColor   string
	Thickness   float64
}

// Defaults for the ledger charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 28.0
	DefaultTicks   = 5
	DefaultSquare  = 260
)

// Palette is cycled for series without an explicit colour.
var Palette = []string{"#0ea5e9", "#22c55e", "#f59e0b", "#a855f7", "#ef4444", "#14b8a6", "#6366f1", "#f97316"}

func paletteColor(i int, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return Palette[i%len(Palette)]
}
