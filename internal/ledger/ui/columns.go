package ui

import (
	"fmt"
	"strings"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

// ColumnKind selects how a column renders.
type ColumnKind int

// Column kinds.
const (
	KindName ColumnKind = iota
	KindCurrency
	KindAction
)

func (k ColumnKind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindCurrency:
		return "currency"
	case KindAction:
		return "action"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column key for the trailing action column; exports skip it.
const ColumnActions = "actions"

// Column declares one grid column.
type Column struct {
	Key   string
	Title string
	Field string
	Kind  ColumnKind
}

// ColumnSet is the column selection resolved once per panel.
type ColumnSet struct {
	Entity  ledger.EntityType
	Columns []Column
}

var (
	colName    = Column{Key: "name", Title: "Name", Kind: KindName}
	colBounty  = Column{Key: "bounty", Title: "Bounty", Field: ledger.FieldBounty, Kind: KindCurrency}
	colESS     = Column{Key: "ess", Title: "ESS", Field: ledger.FieldESS, Kind: KindCurrency}
	colMining  = Column{Key: "mining", Title: "Mining", Field: ledger.FieldMining, Kind: KindCurrency}
	colMisc    = Column{Key: "misc", Title: "Miscellaneous", Field: ledger.FieldMisc, Kind: KindCurrency}
	colCosts   = Column{Key: "costs", Title: "Costs", Field: ledger.FieldCosts, Kind: KindCurrency}
	colTotal   = Column{Key: "total", Title: "Total", Field: ledger.FieldTotal, Kind: KindCurrency}
	colActions = Column{Key: ColumnActions, Title: "Actions", Kind: KindAction}
)

var columnSets = map[ledger.EntityType][]Column{
	ledger.EntityCharacter:   {colName, colBounty, colESS, colMining, colMisc, colCosts, colTotal, colActions},
	ledger.EntityAccount:     {colName, colBounty, colESS, colMining, colMisc, colCosts, colTotal, colActions},
	ledger.EntityCorporation: {colName, colBounty, colESS, colMisc, colTotal, colActions},
	ledger.EntityAlliance:    {colName, colBounty, colESS, colMisc, colTotal, colActions},
}

// ColumnsFor resolves the column set for an entity type. Unknown types get
// the corporation layout.
func ColumnsFor(entity ledger.EntityType) ColumnSet {
	cols, ok := columnSets[entity]
	if !ok {
		cols = columnSets[ledger.EntityCorporation]
	}
	return ColumnSet{Entity: entity, Columns: append([]Column(nil), cols...)}
}

// Lookup finds a column by key.
func (cs ColumnSet) Lookup(key string) (Column, bool) {
	for _, col := range cs.Columns {
		if col.Key == key {
			return col, true
		}
	}
	return Column{}, false
}

// Has reports whether the set contains key.
func (cs ColumnSet) Has(key string) bool {
	_, ok := cs.Lookup(key)
	return ok
}

// Currency lists the amount columns, which are also the footer fields.
func (cs ColumnSet) Currency() []Column {
	out := make([]Column, 0, len(cs.Columns))
	for _, col := range cs.Columns {
		if col.Kind == KindCurrency {
			out = append(out, col)
		}
	}
	return out
}

// Avatars builds entity image URLs.
type Avatars struct {
	Base        string
	Placeholder string
	Size        int
}

// DefaultAvatars points at the public EVE image server.
var DefaultAvatars = Avatars{
	Base:        "https://images.evetech.net",
	Placeholder: "/static/img/placeholder.svg",
	Size:        32,
}

// URL resolves the image for an entity-type tag and id.
func (a Avatars) URL(entityType string, id int64) string {
	if id <= 0 {
		return a.placeholder()
	}
	size := a.Size
	if size <= 0 {
		size = 32
	}
	base := strings.TrimRight(a.Base, "/")
	switch ledger.EntityType(strings.ToLower(strings.TrimSpace(entityType))) {
	case ledger.EntityCharacter, ledger.EntityAccount:
		return fmt.Sprintf("%s/characters/%d/portrait?size=%d", base, id, size)
	case ledger.EntityCorporation:
		return fmt.Sprintf("%s/corporations/%d/logo?size=%d", base, id, size)
	case ledger.EntityAlliance:
		return fmt.Sprintf("%s/alliances/%d/logo?size=%d", base, id, size)
	default:
		return a.placeholder()
	}
}

func (a Avatars) placeholder() string {
	if a.Placeholder == "" {
		return DefaultAvatars.Placeholder
	}
	return a.Placeholder
}
