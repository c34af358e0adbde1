package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/guildledger/ledgerboard/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerWarmup preloads ledger and billboard payloads into the response cache.
	TaskLedgerWarmup = "ledger:warmup"
	// TaskLedgerCacheBump invalidates every cached backend payload.
	TaskLedgerCacheBump = "ledger:cache_bump"
)

// WarmupTarget names one entity ledger to preload.
type WarmupTarget struct {
	Entity ledger.EntityType `json:"entity"`
	PK     int64             `json:"pk"`
}

func (t WarmupTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Entity, t.PK)
}

// ParseWarmupTargets reads a comma separated "entity:pk" list.
func ParseWarmupTargets(raw string) ([]WarmupTarget, error) {
	var targets []WarmupTarget
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		kind, id, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("warmup target %q: expected entity:pk", item)
		}
		entity, err := ledger.ParseEntityType(kind)
		if err != nil {
			return nil, fmt.Errorf("warmup target %q: %w", item, err)
		}
		pk, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || pk <= 0 {
			return nil, fmt.Errorf("warmup target %q: invalid pk", item)
		}
		targets = append(targets, WarmupTarget{Entity: entity, PK: pk})
	}
	return targets, nil
}

// WarmupPayload optionally narrows a warmup run. An empty target list warms
// the configured defaults.
type WarmupPayload struct {
	Targets []WarmupTarget `json:"targets,omitempty"`
}

// NewWarmupTask constructs a warmup task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerWarmup, data), nil
}

// CacheBumpPayload records who asked for the invalidation.
type CacheBumpPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewCacheBumpTask constructs a cache bump task.
func NewCacheBumpTask(payload CacheBumpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerCacheBump, data), nil
}
