// Package chart keeps the live chart instances of one dashboard panel and
// turns billboard payloads into SVG through the svg renderers.
package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/backend"
	"github.com/guildledger/ledgerboard/internal/ledger/svg"
)

// Kind names a chart renderer.
type Kind string

const (
	KindBar   Kind = "bar"
	KindDonut Kind = "donut"
	KindChord Kind = "chord"
	KindGauge Kind = "gauge"
)

// ParseKind validates a chart kind name.
func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindBar, KindDonut, KindChord, KindGauge:
		return k, true
	}
	return "", false
}

// DefaultBindings maps billboard slots to the kind that draws them.
var DefaultBindings = map[string]Kind{
	"rattingbar":    KindBar,
	"charts":        KindDonut,
	"flow":          KindChord,
	"workflowgauge": KindGauge,
}

// KindForSlot returns the bound kind for a billboard slot, bar when unbound.
func KindForSlot(slot string) Kind {
	if k, ok := DefaultBindings[slot]; ok {
		return k
	}
	return KindBar
}

// Instance is one rendered chart living in a container.
type Instance struct {
	ID      string
	Kind    Kind
	Title   string
	SVG     template.HTML
	Updates int

	disposed bool
}

// Disposed reports whether the instance has been torn down.
func (i *Instance) Disposed() bool { return i.disposed }

// Registry owns the chart instances of a single panel keyed by container id.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Instance
	hidden    map[string]bool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]*Instance),
		hidden:    make(map[string]bool),
	}
}

// Render draws payload into the container. An existing instance of the same
// kind is updated in place, one of another kind is disposed and replaced. An
// empty series draws a "No data" placeholder. A nil payload or a series that
// is not a JSON array hides the container and returns an error wrapping
// backend.ErrMalformedPayload.
func (r *Registry) Render(containerID string, payload *ledger.ChartPayload, kind Kind) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	html, err := draw(payload, kind)
	if err != nil {
		r.disposeLocked(containerID)
		r.hidden[containerID] = true
		return nil, fmt.Errorf("%w: chart %s: %v", backend.ErrMalformedPayload, containerID, err)
	}
	delete(r.hidden, containerID)

	if inst, ok := r.instances[containerID]; ok {
		if inst.Kind == kind {
			inst.SVG = html
			inst.Title = payload.Title
			inst.Updates++
			return inst, nil
		}
		r.disposeLocked(containerID)
	}
	inst := &Instance{ID: containerID, Kind: kind, Title: payload.Title, SVG: html}
	r.instances[containerID] = inst
	return inst, nil
}

// Get returns the live instance in a container.
func (r *Registry) Get(containerID string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[containerID]
	return inst, ok
}

// Hidden reports whether the container was hidden by a failed render.
func (r *Registry) Hidden(containerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden[containerID]
}

// Dispose tears down one instance.
func (r *Registry) Dispose(containerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposeLocked(containerID)
}

// DisposeAll tears down every instance and clears hidden markers.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.instances {
		r.disposeLocked(id)
	}
	r.hidden = make(map[string]bool)
}

// Instances lists live instances ordered by container id.
func (r *Registry) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) disposeLocked(containerID string) {
	if inst, ok := r.instances[containerID]; ok {
		inst.disposed = true
		inst.SVG = ""
		delete(r.instances, containerID)
	}
}

type barSeries struct {
	Name string          `json:"name"`
	Data []ledger.Amount `json:"data"`
}

type donutSlice struct {
	Name  string        `json:"name"`
	Value ledger.Amount `json:"value"`
	Kind  string        `json:"kind"`
}

type chordLink struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Value ledger.Amount `json:"value"`
}

type gaugeValue struct {
	Name  string        `json:"name"`
	Value ledger.Amount `json:"value"`
	Max   ledger.Amount `json:"max"`
}

func draw(payload *ledger.ChartPayload, kind Kind) (template.HTML, error) {
	if payload == nil {
		return "", fmt.Errorf("no payload")
	}
	raw := bytes.TrimSpace(payload.Series)
	if len(raw) == 0 || raw[0] != '[' {
		return "", fmt.Errorf("series is not an array")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", err
	}
	if len(items) == 0 {
		if kind == KindGauge {
			return svg.Empty(svg.DefaultSquare, svg.DefaultSquare, payload.Title), nil
		}
		return svg.Empty(0, 0, payload.Title), nil
	}

	switch kind {
	case KindBar:
		var in []barSeries
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", err
		}
		series := make([]svg.BarSeries, 0, len(in))
		for _, s := range in {
			data := make([]float64, len(s.Data))
			for i, v := range s.Data {
				data[i] = float64(v)
			}
			series = append(series, svg.BarSeries{Name: s.Name, Data: data})
		}
		return svg.StackedBars(0, 0, payload.Categories, series, svg.BarOpts{Title: payload.Title})
	case KindDonut:
		var in []donutSlice
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", err
		}
		slices := make([]svg.Slice, 0, len(in))
		for _, s := range in {
			slices = append(slices, svg.Slice{Name: s.Name, Value: float64(s.Value), Kind: s.Kind})
		}
		return svg.Donut(0, 0, slices, svg.DonutOpts{Title: payload.Title})
	case KindChord:
		var in []chordLink
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", err
		}
		links := make([]svg.Link, 0, len(in))
		for _, l := range in {
			links = append(links, svg.Link{From: l.From, To: l.To, Value: float64(l.Value)})
		}
		return svg.Chord(0, 0, links, svg.ChordOpts{Title: payload.Title, Animate: true})
	case KindGauge:
		var in []gaugeValue
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", err
		}
		g := in[0]
		return svg.Gauge(0, 0, float64(g.Value), float64(g.Max), svg.GaugeOpts{Title: payload.Title, Label: g.Name})
	default:
		return "", fmt.Errorf("unknown chart kind %q", kind)
	}
}
