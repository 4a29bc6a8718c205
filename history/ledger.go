// Package history implements the editor's undo/redo ledger: an ordered list
// of document snapshots with a cursor marking the current state.
package history

import (
	"fmt"

	"nocap-editor/document"

	"github.com/sirupsen/logrus"
)

// NoCursor is the cursor of an empty ledger.
const NoCursor = -1

// EventKind identifies what changed in a ledger.
type EventKind int

const (
	// Recorded means a new snapshot was appended.
	Recorded EventKind = iota
	// Moved means the cursor moved through undo or redo.
	Moved
	// Replaced means the whole history was seeded from elsewhere.
	Replaced
	// Reset means the history was wiped.
	Reset
)

func (k EventKind) String() string {
	switch k {
	case Recorded:
		return "recorded"
	case Moved:
		return "moved"
	case Replaced:
		return "replaced"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event describes a ledger change. Entries is a copy owned by the receiver.
type Event struct {
	Kind    EventKind
	Entries []document.Snapshot
	Cursor  int
}

// Current returns the snapshot at the event's cursor.
func (e Event) Current() (document.Snapshot, bool) {
	if e.Cursor < 0 || e.Cursor >= len(e.Entries) {
		return "", false
	}
	return e.Entries[e.Cursor], true
}

// Observer is notified after every ledger change.
type Observer interface {
	LedgerChanged(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) LedgerChanged(e Event) { f(e) }

// Option configures a Ledger.
type Option func(*Ledger)

// WithLimit caps the number of retained snapshots. The oldest entries are
// dropped first; a replaced history that is still too long loses the far end
// of its redo branch. Zero means unlimited.
func WithLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.limit = n
		}
	}
}

// Ledger is an append-only, truncate-on-branch sequence of snapshots. It is
// not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	entries   []document.Snapshot
	cursor    int
	limit     int
	observers []Observer
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{cursor: NoCursor}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe registers o for change notifications.
func (l *Ledger) Subscribe(o Observer) {
	l.observers = append(l.observers, o)
}

// Record truncates any redo branch, then appends s and moves the cursor to
// it. Recording the snapshot already at the cursor is a no-op and keeps the
// redo branch. It reports whether a new entry was appended.
func (l *Ledger) Record(s document.Snapshot) bool {
	if cur, ok := l.Current(); ok && cur == s {
		logrus.WithField("cursor", l.cursor).Debug("Skipped identical snapshot")
		return false
	}

	entries := l.entries[:l.cursor+1]
	l.entries = append(entries, s)
	if l.limit > 0 && len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		l.entries = append([]document.Snapshot(nil), l.entries[drop:]...)
	}
	l.cursor = len(l.entries) - 1
	logrus.WithFields(logrus.Fields{
		"cursor":  l.cursor,
		"entries": len(l.entries),
	}).Debug("Recorded snapshot")
	l.notify(Recorded)
	return true
}

// Previous returns the entry before the cursor without moving.
func (l *Ledger) Previous() (document.Snapshot, bool) {
	if !l.CanStepBack() {
		return "", false
	}
	return l.entries[l.cursor-1], true
}

// Next returns the entry after the cursor without moving.
func (l *Ledger) Next() (document.Snapshot, bool) {
	if !l.CanStepForward() {
		return "", false
	}
	return l.entries[l.cursor+1], true
}

// StepBack moves the cursor one entry back and returns that entry. It is a
// no-op at the first entry.
func (l *Ledger) StepBack() (document.Snapshot, bool) {
	s, ok := l.Previous()
	if !ok {
		return "", false
	}
	l.cursor--
	l.notify(Moved)
	return s, true
}

// StepForward moves the cursor one entry forward and returns that entry. It
// is a no-op at the last entry.
func (l *Ledger) StepForward() (document.Snapshot, bool) {
	s, ok := l.Next()
	if !ok {
		return "", false
	}
	l.cursor++
	l.notify(Moved)
	return s, true
}

// CanStepBack reports whether an earlier state exists.
func (l *Ledger) CanStepBack() bool {
	return l.cursor > 0
}

// CanStepForward reports whether a later state exists.
func (l *Ledger) CanStepForward() bool {
	return l.cursor < len(l.entries)-1
}

// Current returns the entry at the cursor.
func (l *Ledger) Current() (document.Snapshot, bool) {
	if l.cursor < 0 {
		return "", false
	}
	return l.entries[l.cursor], true
}

// Cursor returns the cursor, or NoCursor for an empty ledger.
func (l *Ledger) Cursor() int { return l.cursor }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns a copy of the history.
func (l *Ledger) Entries() []document.Snapshot {
	return append([]document.Snapshot(nil), l.entries...)
}

// Reset clears all entries and the cursor.
func (l *Ledger) Reset() {
	l.entries = nil
	l.cursor = NoCursor
	logrus.Debug("History reset")
	l.notify(Reset)
}

// Replace seeds the ledger with entries, for example from local storage or a
// project's saved content. The cursor must index entries, or be NoCursor when
// entries is empty.
func (l *Ledger) Replace(entries []document.Snapshot, cursor int) error {
	if len(entries) == 0 {
		if cursor != NoCursor {
			return fmt.Errorf("cursor %d out of range for empty history", cursor)
		}
	} else if cursor < 0 || cursor >= len(entries) {
		return fmt.Errorf("cursor %d out of range for %d entries", cursor, len(entries))
	}

	l.entries = append([]document.Snapshot(nil), entries...)
	l.cursor = cursor
	if l.limit > 0 && len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		if drop > l.cursor {
			drop = l.cursor
		}
		l.entries = l.entries[drop:]
		l.cursor -= drop
		if len(l.entries) > l.limit {
			l.entries = l.entries[:l.limit]
		}
	}
	l.notify(Replaced)
	return nil
}

func (l *Ledger) notify(kind EventKind) {
	if len(l.observers) == 0 {
		return
	}
	ev := Event{Kind: kind, Entries: l.Entries(), Cursor: l.cursor}
	for _, o := range l.observers {
		o.LedgerChanged(ev)
	}
}
