// Package session owns the live document of one editing surface and keeps it
// in step with the history ledger, the persistence bridge and the layers view.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nocap-editor/core"
	"nocap-editor/document"
	"nocap-editor/history"
	"nocap-editor/layers"
	"nocap-editor/persistence"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoSurface is returned by mutations while no surface is attached.
	ErrNoSurface = errors.New("no surface attached")

	// ErrUnknownObject is returned when an object is not part of the live
	// document.
	ErrUnknownObject = errors.New("object is not part of the document")
)

// Zoom bounds.
const (
	MinZoom = 0.1
	MaxZoom = 5.0
)

// Images wider than this are scaled down when placed.
const MaxImageWidth = 400

// Option configures a Session.
type Option func(*Session)

// WithHistoryLimit caps the ledger built by Restore.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.historyLimit = n }
}

// Session is the single writer of a live document. All methods are safe to
// call from any goroutine; the session lock is never held while the surface
// loads a document or emits events.
type Session struct {
	ledger       *history.Ledger
	bridge       *persistence.Bridge
	projects     core.ProjectStore
	historyLimit int

	mu       sync.Mutex
	surface  Surface
	cancel   func()
	gen      uint64
	loading  int
	zoom     float64
	view     layers.View
	watchers map[int]func(layers.View)
	nextID   int
}

// New returns a session over ledger. The bridge, when not nil, is subscribed
// to the ledger; projects is used by LoadFromProject.
func New(ledger *history.Ledger, bridge *persistence.Bridge, projects core.ProjectStore, opts ...Option) *Session {
	if ledger == nil {
		ledger = history.New()
	}
	s := &Session{
		ledger:   ledger,
		bridge:   bridge,
		projects: projects,
		zoom:     1,
		view:     layers.Build(nil, nil),
		watchers: make(map[int]func(layers.View)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if bridge != nil {
		ledger.Subscribe(bridge)
	}
	return s
}

// Restore builds a session whose history is read back from the bridge's
// local mirror. An unreadable mirror starts an empty history.
func Restore(ctx context.Context, bridge *persistence.Bridge, projects core.ProjectStore, opts ...Option) (*Session, error) {
	var cfg Session
	for _, opt := range opts {
		opt(&cfg)
	}
	ledger := history.New(history.WithLimit(cfg.historyLimit))

	if bridge != nil {
		entries, cursor, err := bridge.LoadHistory(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Local history unreadable, starting empty")
			entries, cursor = nil, history.NoCursor
		}
		if err := ledger.Replace(entries, cursor); err != nil {
			return nil, fmt.Errorf("restore history: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"entries": len(entries),
			"cursor":  cursor,
		}).Info("History restored from local storage")
	}
	return New(ledger, bridge, projects, opts...), nil
}

// current returns the attached surface and its generation.
func (s *Session) current() (Surface, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface, s.gen
}

// staleLocked reports whether (surf, gen) is no longer the attached surface.
func (s *Session) staleLocked(surf Surface, gen uint64) bool {
	return s.surface != surf || s.gen != gen
}

func logStale(op string) {
	logrus.WithError(core.ErrStaleSurface).WithField("op", op).Debug("Discarded completion for detached surface")
}

// AttachSurface binds the session to surf, replacing any previous surface.
// The current history entry is loaded into it; a session with no history that
// is not bound to a project commits the surface's initial document.
func (s *Session) AttachSurface(ctx context.Context, surf Surface) error {
	if surf == nil {
		return ErrNoSurface
	}

	s.mu.Lock()
	prev := s.cancel
	s.cancel = nil
	s.gen++
	gen := s.gen
	s.surface = surf
	s.loading = 0
	snap, hasHistory := s.ledger.Current()
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	cancel := surf.Subscribe(s.handler(surf, gen))

	s.mu.Lock()
	if s.staleLocked(surf, gen) {
		s.mu.Unlock()
		cancel()
		logStale("attach")
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	if hasHistory {
		doc, err := document.Deserialize(snap)
		if err != nil {
			logrus.WithError(err).Warn("Current snapshot is corrupt, loading an empty document")
			doc = document.Empty()
		}
		ok, err := s.load(ctx, surf, gen, doc, nil)
		if err != nil || !ok {
			return err
		}
		s.refresh(surf, gen, nil)
		return nil
	}

	if s.ProjectID() == "" {
		return s.commit(surf, gen)
	}
	s.refresh(surf, gen, nil)
	return nil
}

// Detach unbinds the current surface. In-flight loads for it are discarded.
func (s *Session) Detach() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.surface = nil
	s.gen++
	s.loading = 0
	s.view = layers.Build(nil, nil)
	view, watchers := s.view, s.watcherList()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	notify(watchers, view)
}

// Surface returns the attached surface, or nil.
func (s *Session) Surface() Surface {
	surf, _ := s.current()
	return surf
}

// ProjectID returns the project the session is bound to, or "".
func (s *Session) ProjectID() string {
	if s.bridge == nil {
		return ""
	}
	return s.bridge.ProjectID()
}

// handler reacts to events of surf while it is attached as generation gen.
func (s *Session) handler(surf Surface, gen uint64) func(Event) {
	return func(ev Event) {
		s.mu.Lock()
		stale := s.staleLocked(surf, gen)
		loading := s.loading > 0
		s.mu.Unlock()
		if stale {
			logStale(ev.Kind.String())
			return
		}

		switch ev.Kind {
		case ObjectAdded, ObjectModified, ObjectRemoved:
			if loading {
				return
			}
			if err := s.commit(surf, gen); err != nil {
				logrus.WithError(err).WithField("event", ev.Kind.String()).Error("Failed to commit surface change")
			}
		case SelectionCleared:
			s.refresh(surf, gen, []*document.Object{})
		default:
			s.refresh(surf, gen, nil)
		}
	}
}

// load puts doc into surf. It reports false when surf was detached while
// loading. A non-nil apply runs under the session lock once the load has
// succeeded, before structural events are committed again.
func (s *Session) load(ctx context.Context, surf Surface, gen uint64, doc *document.Document, apply func() error) (bool, error) {
	s.mu.Lock()
	if s.staleLocked(surf, gen) {
		s.mu.Unlock()
		logStale("load")
		return false, nil
	}
	s.loading++
	s.mu.Unlock()

	err := surf.LoadDocument(ctx, doc)
	if err != nil {
		err = fmt.Errorf("load document: %w", err)
	}

	s.mu.Lock()
	stale := s.staleLocked(surf, gen)
	if !stale {
		if err == nil && apply != nil {
			err = apply()
		}
		s.loading--
	}
	s.mu.Unlock()

	if stale {
		logStale("load")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Commit records the surface's document in the history and recomputes the
// layers view. Without a surface it does nothing.
func (s *Session) Commit() error {
	surf, gen := s.current()
	if surf == nil {
		return nil
	}
	return s.commit(surf, gen)
}

func (s *Session) commit(surf Surface, gen uint64) error {
	doc := surf.Document()
	snap, err := document.Serialize(doc)
	if err != nil {
		return err
	}
	if r, ok := surf.(Renderer); ok {
		r.RequestRender()
	}
	view := layers.Build(doc, layers.ActiveSelection(surf))

	s.mu.Lock()
	if s.staleLocked(surf, gen) {
		s.mu.Unlock()
		logStale("commit")
		return nil
	}
	s.ledger.Record(snap)
	s.view = view
	watchers := s.watcherList()
	s.mu.Unlock()

	notify(watchers, view)
	return nil
}

// refresh recomputes the layers view. A nil selection is read from the
// surface.
func (s *Session) refresh(surf Surface, gen uint64, selection []*document.Object) {
	if selection == nil {
		selection = layers.ActiveSelection(surf)
	}
	view := layers.Build(surf.Document(), selection)

	s.mu.Lock()
	if s.staleLocked(surf, gen) {
		s.mu.Unlock()
		return
	}
	s.view = view
	watchers := s.watcherList()
	s.mu.Unlock()

	notify(watchers, view)
}

// LoadFromProject replaces the history with the saved content of project id
// and binds the session to it. The history and binding only change once the
// attached surface has loaded the content; a missing project or a failed load
// leaves everything as is.
func (s *Session) LoadFromProject(ctx context.Context, id string) error {
	if s.projects == nil {
		return errors.New("no project store configured")
	}

	log := logrus.WithField("project_id", id)
	p, err := s.projects.FetchProject(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrProjectNotFound) {
			log.Warn("Project not found, keeping current document")
		} else {
			log.WithError(err).Error("Failed to fetch project")
		}
		return err
	}

	content := document.Snapshot(p.Content)
	doc, err := document.Deserialize(content)
	if err != nil {
		log.WithError(err).Warn("Project content is corrupt, loading an empty document")
		content = document.EmptySnapshot()
		doc = document.Empty()
	}

	if s.bridge != nil && s.bridge.ProjectID() != id {
		if err := s.bridge.Flush(ctx); err != nil {
			log.WithError(err).Warn("Failed to flush previous project before switching")
		}
	}

	apply := func() error {
		if err := s.ledger.Replace([]document.Snapshot{content}, 0); err != nil {
			return err
		}
		if s.bridge != nil {
			s.bridge.Bind(id)
		}
		return nil
	}

	s.mu.Lock()
	surf, gen := s.surface, s.gen
	if surf == nil {
		err = apply()
		s.mu.Unlock()
		if err != nil {
			return err
		}
		log.Info("Project loaded into session")
		return nil
	}
	s.mu.Unlock()

	ok, err := s.load(ctx, surf, gen, doc, apply)
	if err != nil {
		log.WithError(err).Error("Failed to load project into surface, keeping current document")
		return err
	}
	if !ok {
		return nil
	}
	log.Info("Project loaded into session")
	s.refresh(surf, gen, nil)
	return nil
}

// Clear empties the surface, resets the history and commits the empty
// document.
func (s *Session) Clear() error {
	surf, gen := s.current()
	if surf == nil {
		return ErrNoSurface
	}

	surf.SetActiveObjects()
	surf.Document().Clear()

	s.mu.Lock()
	if s.staleLocked(surf, gen) {
		s.mu.Unlock()
		logStale("clear")
		return nil
	}
	s.ledger.Reset()
	s.mu.Unlock()

	return s.commit(surf, gen)
}

// Undo loads the previous history entry. The cursor only moves once the
// surface has loaded it.
func (s *Session) Undo(ctx context.Context) error {
	return s.step(ctx, false)
}

// Redo loads the next history entry.
func (s *Session) Redo(ctx context.Context) error {
	return s.step(ctx, true)
}

func (s *Session) step(ctx context.Context, forward bool) error {
	s.mu.Lock()
	surf, gen := s.surface, s.gen
	if surf == nil {
		s.mu.Unlock()
		return nil
	}
	var (
		snap document.Snapshot
		ok   bool
	)
	if forward {
		snap, ok = s.ledger.Next()
	} else {
		snap, ok = s.ledger.Previous()
	}
	from := s.ledger.Cursor()
	s.mu.Unlock()
	if !ok {
		return nil
	}

	log := logrus.WithFields(logrus.Fields{"cursor": from, "redo": forward})
	doc, err := document.Deserialize(snap)
	if err != nil {
		log.WithError(err).Warn("History entry is corrupt, step aborted")
		return err
	}
	loaded, err := s.load(ctx, surf, gen, doc, nil)
	if err != nil || !loaded {
		return err
	}

	s.mu.Lock()
	if s.staleLocked(surf, gen) || s.ledger.Cursor() != from {
		s.mu.Unlock()
		logStale("step")
		return nil
	}
	if forward {
		s.ledger.StepForward()
	} else {
		s.ledger.StepBack()
	}
	s.mu.Unlock()

	log.Debug("History step applied")
	s.refresh(surf, gen, nil)
	return nil
}

// CanUndo reports whether an earlier state exists.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.CanStepBack()
}

// CanRedo reports whether a later state exists.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.CanStepForward()
}

// History returns a copy of the ledger entries and the cursor.
func (s *Session) History() ([]document.Snapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Entries(), s.ledger.Cursor()
}

// View returns the layers view of the last commit or selection change.
func (s *Session) View() layers.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Watch calls fn with every recomputed view until the returned function is
// called.
func (s *Session) Watch(fn func(layers.View)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Session) watcherList() []func(layers.View) {
	out := make([]func(layers.View), 0, len(s.watchers))
	for _, fn := range s.watchers {
		out = append(out, fn)
	}
	return out
}

func notify(watchers []func(layers.View), v layers.View) {
	for _, fn := range watchers {
		fn(v)
	}
}

// Zoom returns the current zoom factor.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// SetZoom clamps z to [MinZoom, MaxZoom] and applies it to the surface. It
// returns the applied value.
func (s *Session) SetZoom(z float64) float64 {
	z = min(max(z, MinZoom), MaxZoom)

	s.mu.Lock()
	s.zoom = z
	surf := s.surface
	s.mu.Unlock()

	if vp, ok := surf.(Viewport); ok {
		vp.SetZoom(z)
	}
	return z
}

// ResetView restores zoom 1 and the identity viewport.
func (s *Session) ResetView() {
	s.mu.Lock()
	s.zoom = 1
	surf := s.surface
	s.mu.Unlock()

	if vp, ok := surf.(Viewport); ok {
		vp.ResetViewport()
	}
}
