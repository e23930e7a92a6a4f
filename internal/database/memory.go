package database

import (
	"fmt"
	"sync"

	"tidy-go/internal/tidy"
)

// MemoryLedger is an in-memory implementation of the tidy.Ledger interface.
// Nothing survives process exit, making it useful for tests and dry
// experimentation. This implementation is safe for concurrent use.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []*tidy.HistoryEntry // append order; newest last
	items   map[string]*tidy.RestorableItem
}

// NewMemoryLedger creates a new in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{items: make(map[string]*tidy.RestorableItem)}
}

// Append records an entry and its restorable items.
func (l *MemoryLedger) Append(entry *tidy.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := copyEntry(entry)
	l.entries = append(l.entries, stored)
	for i := range stored.Restorables {
		l.items[stored.Restorables[i].ID] = &stored.Restorables[i]
	}
	return nil
}

// Entries returns the most recent entries, newest first.
func (l *MemoryLedger) Entries(limit int) ([]*tidy.HistoryEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*tidy.HistoryEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, copyEntry(l.entries[i]))
	}
	return out, nil
}

// Latest returns the newest entry, or nil if the ledger is empty.
func (l *MemoryLedger) Latest() (*tidy.HistoryEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return nil, nil
	}
	return copyEntry(l.entries[len(l.entries)-1]), nil
}

// MarkUndone sets the undone flag on an entry.
func (l *MemoryLedger) MarkUndone(entryID string) error {
	return l.setUndone(entryID, true)
}

// MarkRedone clears the undone flag on an entry.
func (l *MemoryLedger) MarkRedone(entryID string) error {
	return l.setUndone(entryID, false)
}

func (l *MemoryLedger) setUndone(entryID string, undone bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.ID == entryID {
			e.Undone = undone
			return nil
		}
	}
	return fmt.Errorf("unknown entry: %s", entryID)
}

// ListRestorables returns quarantined items, newest first.
func (l *MemoryLedger) ListRestorables(includeResolved bool) ([]*tidy.RestorableItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*tidy.RestorableItem
	for i := len(l.entries) - 1; i >= 0; i-- {
		for j := range l.entries[i].Restorables {
			item := l.items[l.entries[i].Restorables[j].ID]
			if item == nil {
				continue
			}
			if !includeResolved && item.State != tidy.RestorableQuarantined {
				continue
			}
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

// FindRestorable returns the item with the given ID, or nil if unknown.
func (l *MemoryLedger) FindRestorable(itemID string) (*tidy.RestorableItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[itemID]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

// MarkRestored records that an item was moved back to its original path.
func (l *MemoryLedger) MarkRestored(itemID string) error {
	return l.setItemState(itemID, tidy.RestorableRestored)
}

// MarkQuarantined records that a previously restored item was re-quarantined.
func (l *MemoryLedger) MarkQuarantined(itemID string) error {
	return l.setItemState(itemID, tidy.RestorableQuarantined)
}

// MarkPurged records that an item's quarantined copy was permanently deleted.
func (l *MemoryLedger) MarkPurged(itemID string) error {
	return l.setItemState(itemID, tidy.RestorablePurged)
}

// UpdateQuarantinePath repoints an item at a new quarantine location.
func (l *MemoryLedger) UpdateQuarantinePath(itemID, quarantinePath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return fmt.Errorf("unknown restorable item: %s", itemID)
	}
	item.QuarantinePath = quarantinePath
	return nil
}

func (l *MemoryLedger) setItemState(itemID string, state string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return fmt.Errorf("unknown restorable item: %s", itemID)
	}
	item.State = state
	return nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error { return nil }

// copyEntry deep-copies an entry so callers can't mutate stored state.
func copyEntry(e *tidy.HistoryEntry) *tidy.HistoryEntry {
	cp := *e
	cp.Operations = append([]tidy.MutationOperation(nil), e.Operations...)
	cp.Restorables = append([]tidy.RestorableItem(nil), e.Restorables...)
	return &cp
}

// Compile-time check that MemoryLedger implements tidy.Ledger
var _ tidy.Ledger = (*MemoryLedger)(nil)
