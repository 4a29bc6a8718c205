// Package persistence mirrors the editor history into local storage and
// pushes the latest snapshot of cloud-bound sessions to the project store.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"
	"nocap-editor/history"

	"github.com/sirupsen/logrus"
)

// Local storage keys.
const (
	KeyHistory      = "history"
	KeyHistoryIndex = "history-index"
)

const (
	DefaultDebounceWindow = 2 * time.Second
	DefaultRemoteTimeout  = 10 * time.Second
)

// Thumbnailer renders a preview of a snapshot for the project card.
type Thumbnailer func(document.Snapshot) (string, error)

// Option configures a Bridge.
type Option func(*Bridge)

// WithDebounceWindow sets the delay between the last record and the remote
// write.
func WithDebounceWindow(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithRemoteTimeout bounds each remote write.
func WithRemoteTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithThumbnailer attaches a renderer whose output is pushed with every
// remote write.
func WithThumbnailer(fn Thumbnailer) Option {
	return func(b *Bridge) { b.thumbnail = fn }
}

// Bridge observes a history ledger. Every change is written synchronously to
// local storage; recorded snapshots of a cloud-bound session are pushed to the
// project store after the debounce window, last write wins.
type Bridge struct {
	local     core.KeyValueStore
	remote    core.ProjectStore
	window    time.Duration
	timeout   time.Duration
	thumbnail Thumbnailer

	mu        sync.Mutex
	projectID string
	timer     *time.Timer
	pending   *pendingWrite
	closed    bool
	inflight  sync.WaitGroup
}

type pendingWrite struct {
	projectID string
	content   document.Snapshot
}

// New returns a bridge writing to local and, once bound, to remote. Either
// store may be nil.
func New(local core.KeyValueStore, remote core.ProjectStore, opts ...Option) *Bridge {
	b := &Bridge{
		local:   local,
		remote:  remote,
		window:  DefaultDebounceWindow,
		timeout: DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind marks the session as cloud-bound to projectID. A pending write for a
// previous project is cancelled.
func (b *Bridge) Bind(projectID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.projectID != projectID {
		b.cancelLocked()
	}
	b.projectID = projectID
	logrus.WithField("project_id", projectID).Info("Session bound to project")
}

// Unbind stops remote writes and cancels any pending one.
func (b *Bridge) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelLocked()
	b.projectID = ""
}

// ProjectID returns the bound project, or "" for a local-only session.
func (b *Bridge) ProjectID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.projectID
}

// Pending reports whether a remote write is scheduled.
func (b *Bridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// LedgerChanged implements history.Observer.
func (b *Bridge) LedgerChanged(ev history.Event) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}

	ctx := context.Background()
	if ev.Kind == history.Reset {
		b.mu.Lock()
		b.cancelLocked()
		b.mu.Unlock()
		if err := b.clearLocal(ctx); err != nil {
			logrus.WithError(err).Error("Failed to clear local history")
		}
		return
	}

	if err := b.writeLocal(ctx, ev.Entries, ev.Cursor); err != nil {
		logrus.WithError(err).Error("Failed to write local history")
	}
	if ev.Kind == history.Recorded {
		if cur, ok := ev.Current(); ok {
			b.schedule(cur)
		}
	}
}

func (b *Bridge) writeLocal(ctx context.Context, entries []document.Snapshot, cursor int) error {
	if b.local == nil {
		return nil
	}
	if entries == nil {
		entries = []document.Snapshot{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return b.local.Put(ctx, map[string]string{
		KeyHistory:      string(raw),
		KeyHistoryIndex: strconv.Itoa(cursor),
	})
}

func (b *Bridge) clearLocal(ctx context.Context) error {
	if b.local == nil {
		return nil
	}
	return b.local.Delete(ctx, KeyHistory, KeyHistoryIndex)
}

// LoadHistory reads the mirrored history back from local storage. Missing keys
// yield an empty history.
func (b *Bridge) LoadHistory(ctx context.Context) ([]document.Snapshot, int, error) {
	if b.local == nil {
		return nil, history.NoCursor, nil
	}

	raw, ok, err := b.local.Get(ctx, KeyHistory)
	if err != nil {
		return nil, history.NoCursor, err
	}
	if !ok {
		return nil, history.NoCursor, nil
	}
	var entries []document.Snapshot
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, history.NoCursor, fmt.Errorf("decode local history: %w", err)
	}

	cursor := len(entries) - 1
	idx, ok, err := b.local.Get(ctx, KeyHistoryIndex)
	if err != nil {
		return nil, history.NoCursor, err
	}
	if ok {
		if cursor, err = strconv.Atoi(idx); err != nil {
			return nil, history.NoCursor, fmt.Errorf("decode local history index: %w", err)
		}
	}
	if len(entries) == 0 {
		cursor = history.NoCursor
	} else if cursor < 0 || cursor >= len(entries) {
		cursor = len(entries) - 1
	}
	return entries, cursor, nil
}

// schedule (re)starts the debounce timer for content.
func (b *Bridge) schedule(content document.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.projectID == "" || b.remote == nil || b.closed {
		return
	}
	b.cancelLocked()

	w := &pendingWrite{projectID: b.projectID, content: content}
	b.pending = w
	b.timer = time.AfterFunc(b.window, func() { b.fire(w) })
}

func (b *Bridge) cancelLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil
}

// fire runs on the timer goroutine. A timer that was cancelled after it had
// already started no longer owns the pending write and does nothing.
func (b *Bridge) fire(w *pendingWrite) {
	b.mu.Lock()
	if b.pending != w || b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	b.timer = nil
	b.inflight.Add(1)
	b.mu.Unlock()

	defer b.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	_ = b.write(ctx, w)
}

func (b *Bridge) write(ctx context.Context, w *pendingWrite) error {
	log := logrus.WithFields(logrus.Fields{
		"project_id":  w.projectID,
		"data_length": len(w.content),
	})

	content := string(w.content)
	upd := core.ProjectUpdate{Content: &content}
	if b.thumbnail != nil {
		thumb, err := b.thumbnail(w.content)
		if err != nil {
			log.WithError(err).Warn("Failed to render thumbnail")
		} else {
			upd.Thumbnail = &thumb
		}
	}

	if _, err := b.remote.UpdateProject(ctx, w.projectID, upd); err != nil {
		err = fmt.Errorf("%w: %v", core.ErrRemoteWriteFailed, err)
		log.WithError(err).Warn("Remote project write failed")
		return err
	}
	log.Info("Project content pushed")
	return nil
}

// Flush performs the pending remote write now instead of waiting for the
// timer.
func (b *Bridge) Flush(ctx context.Context) error {
	b.mu.Lock()
	w := b.pending
	if w == nil || b.closed {
		b.mu.Unlock()
		return nil
	}
	b.cancelLocked()
	b.inflight.Add(1)
	b.mu.Unlock()

	defer b.inflight.Done()
	return b.write(ctx, w)
}

// Close cancels any pending remote write and waits for a write already in
// flight. Later ledger changes are ignored.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.cancelLocked()
	b.mu.Unlock()

	b.inflight.Wait()
}
