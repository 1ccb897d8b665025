package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgard/langcoach/internal/database"
)

// MemoryHistory is an in-process History used by the REPL and tests.
type MemoryHistory struct {
	mu     sync.Mutex
	nextID int64
	turns  map[string][]database.Turn
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{turns: make(map[string][]database.Turn)}
}

func (h *MemoryHistory) AppendTurns(_ context.Context, turns ...*database.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, t := range turns {
		if t == nil || t.ConversationKey == "" {
			return fmt.Errorf("turn %d is invalid", i)
		}
		h.nextID++
		t.ID = h.nextID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		h.turns[t.ConversationKey] = append(h.turns[t.ConversationKey], *t)
	}
	return nil
}

func (h *MemoryHistory) RecentTurns(_ context.Context, key string, limit int) ([]database.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := h.turns[key]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]database.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (h *MemoryHistory) ClearConversation(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, key)
	return nil
}
