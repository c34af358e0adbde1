package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// EntityType classifies the tracked subject of a ledger.
type EntityType string

// Supported entity types.
const (
	EntityCharacter   EntityType = "character"
	EntityCorporation EntityType = "corporation"
	EntityAlliance    EntityType = "alliance"
	EntityAccount     EntityType = "account"
)

// ParseEntityType validates a raw entity type token.
func ParseEntityType(raw string) (EntityType, error) {
	switch et := EntityType(strings.ToLower(strings.TrimSpace(raw))); et {
	case EntityCharacter, EntityCorporation, EntityAlliance, EntityAccount:
		return et, nil
	default:
		return "", fmt.Errorf("ledger: unknown entity type %q", raw)
	}
}

// ViewMode selects the period granularity of a ledger request.
type ViewMode string

// Supported view modes.
const (
	ViewDay   ViewMode = "day"
	ViewMonth ViewMode = "month"
	ViewYear  ViewMode = "year"
)

// ParseViewMode validates a raw view token.
func ParseViewMode(raw string) (ViewMode, error) {
	switch v := ViewMode(strings.ToLower(strings.TrimSpace(raw))); v {
	case ViewDay, ViewMonth, ViewYear:
		return v, nil
	default:
		return "", fmt.Errorf("ledger: unknown view %q", raw)
	}
}

// Amount is an ISK value decoded tolerantly: anything that is not numeric
// (null, booleans, garbage strings, NaN) decodes to zero instead of failing.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount(ParseNumber(data))
	return nil
}

// Float returns the amount as float64.
func (a Amount) Float() float64 { return float64(a) }

// ParseNumber coerces a raw JSON token into a number. Quoted numeric strings
// are accepted; every other shape yields zero.
func ParseNumber(data []byte) float64 {
	token := bytes.TrimSpace(data)
	if len(token) == 0 || bytes.Equal(token, []byte("null")) {
		return 0
	}
	if token[0] == '"' {
		var s string
		if err := json.Unmarshal(token, &s); err != nil {
			return 0
		}
		token = []byte(strings.TrimSpace(s))
	}
	d, err := decimal.NewFromString(string(token))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Amount field names as delivered by the backend.
const (
	FieldBounty = "total_amount"
	FieldESS    = "total_amount_ess"
	FieldMining = "total_amount_mining"
	FieldMisc   = "total_amount_others"
	FieldCosts  = "total_amount_costs"
	FieldTotal  = "total_amount_all"
)

// Record is one ledger row for a tracked sub-entity.
type Record struct {
	MainID     int64  `json:"main_id"`
	MainName   string `json:"main_name"`
	EntityType string `json:"entity_type"`

	Bounty Amount `json:"total_amount"`
	ESS    Amount `json:"total_amount_ess"`
	Mining Amount `json:"total_amount_mining"`
	Misc   Amount `json:"total_amount_others"`
	Costs  Amount `json:"total_amount_costs"`
	Total  Amount `json:"total_amount_all"`
}

// Value returns the named amount field of the record. The combined total is
// returned as reported by the backend and never recomputed.
func (r Record) Value(field string) Amount {
	switch field {
	case FieldBounty:
		return r.Bounty
	case FieldESS:
		return r.ESS
	case FieldMining:
		return r.Mining
	case FieldMisc:
		return r.Misc
	case FieldCosts:
		return r.Costs
	case FieldTotal:
		return r.Total
	default:
		return 0
	}
}

// Totals maps amount field names to backend supplied totals.
type Totals map[string]Amount

// LedgerPayload is the table panel response.
type LedgerPayload struct {
	Ratting   []Record                `json:"ratting"`
	Total     Totals                  `json:"total"`
	Billboard map[string]ChartPayload `json:"billboard"`
}

// BillboardPayload is the chart panel response.
type BillboardPayload struct {
	Billboard map[string]ChartPayload `json:"billboard"`
}

// ChartPayload is one chart-ready series bundle. Series stays raw because its
// shape depends on the chart kind bound to the slot.
type ChartPayload struct {
	Title      string          `json:"title"`
	Categories []string        `json:"categories"`
	Series     json.RawMessage `json:"series"`
}

// Breakdown is the detail modal payload.
type Breakdown struct {
	Summary map[string]Amount `json:"summary"`
	Daily   map[string]Amount `json:"daily"`
	Hourly  map[string]Amount `json:"hourly"`
	Total   BreakdownTotals   `json:"total"`
}

// BreakdownTotals carries per-section totals of a Breakdown.
type BreakdownTotals struct {
	Summary Amount `json:"summary"`
	Daily   Amount `json:"daily"`
	Hourly  Amount `json:"hourly"`
}
