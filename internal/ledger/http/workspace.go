package ledgerhttp

import (
	"fmt"
	"sync"
	"time"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/dashboard"
	"github.com/guildledger/ledgerboard/internal/ledger/modal"
)

// Workspace is one visitor's live dashboard for one entity and date
// selection: panels with their generation counters and chart registries,
// plus open dialogs.
type Workspace struct {
	Dashboard *dashboard.Dashboard
	Modals    *modal.Controller

	lastUsed time.Time
}

// WorkspaceFactory builds a workspace for a fresh selection.
type WorkspaceFactory func(sel ledger.Selection) *Workspace

// Workspaces keeps workspaces per session and selection, evicting idle ones.
// Tabs of one session showing different dates never share panels.
type Workspaces struct {
	mu    sync.Mutex
	items map[string]*Workspace
	ttl   time.Duration
	build WorkspaceFactory
	now   func() time.Time
}

// NewWorkspaces constructs a store. A non-positive ttl keeps workspaces
// until the process exits.
func NewWorkspaces(ttl time.Duration, build WorkspaceFactory) *Workspaces {
	return &Workspaces{
		items: make(map[string]*Workspace),
		ttl:   ttl,
		build: build,
		now:   time.Now,
	}
}

// Get returns the workspace for the session and selection, creating it on
// first use.
func (s *Workspaces) Get(sessionKey string, sel ledger.Selection) *Workspace {
	key := workspaceKey(sessionKey, sel)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	ws, ok := s.items[key]
	if !ok {
		ws = s.build(sel)
		s.items[key] = ws
	}
	ws.lastUsed = now
	return ws
}

// Len reports the number of live workspaces.
func (s *Workspaces) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Workspaces) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for key, ws := range s.items {
		if now.Sub(ws.lastUsed) > s.ttl {
			delete(s.items, key)
		}
	}
}

func workspaceKey(sessionKey string, sel ledger.Selection) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", sessionKey, sel.Entity, sel.EntityPK, sel.View, sel.DateToken(ledger.ViewDay))
}
