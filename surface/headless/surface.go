// Package headless provides an in-memory editing surface. It keeps the
// document without drawing it and simulates user gestures by emitting the
// same events an interactive canvas would.
package headless

import (
	"context"
	"sync"

	"nocap-editor/document"
	"nocap-editor/session"
)

// LoadHook runs at the start of every LoadDocument call.
type LoadHook func(ctx context.Context, doc *document.Document) error

// Option configures a Surface.
type Option func(*Surface)

// WithLoadHook installs a hook, e.g. to delay or fail loads.
func WithLoadHook(h LoadHook) Option {
	return func(s *Surface) { s.hook = h }
}

// WithDocument starts the surface with doc instead of a blank canvas.
func WithDocument(doc *document.Document) Option {
	return func(s *Surface) { s.doc = doc }
}

// Surface implements session.Surface, session.Viewport and session.Renderer.
type Surface struct {
	hook LoadHook

	mu       sync.Mutex
	doc      *document.Document
	active   []*document.Object
	handlers map[int]func(session.Event)
	nextID   int
	zoom     float64
	loads    int
	renders  int
}

// New returns a surface holding a blank canvas.
func New(opts ...Option) *Surface {
	s := &Surface{
		doc:      document.New(),
		handlers: make(map[int]func(session.Event)),
		zoom:     1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Surface) LoadDocument(ctx context.Context, doc *document.Document) error {
	if s.hook != nil {
		if err := s.hook(ctx, doc); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.active = nil
	s.loads++
	return nil
}

func (s *Surface) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

func (s *Surface) ActiveObjects() []*document.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*document.Object{}, s.active...)
}

func (s *Surface) SetActiveObjects(objs ...*document.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append([]*document.Object(nil), objs...)
}

func (s *Surface) Subscribe(fn func(session.Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// emit delivers ev outside the surface lock so handlers may call back in.
func (s *Surface) emit(ev session.Event) {
	s.mu.Lock()
	handlers := make([]func(session.Event), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Draw adds o as if the user drew it.
func (s *Surface) Draw(o *document.Object) {
	s.mu.Lock()
	s.doc.Add(o)
	s.mu.Unlock()
	s.emit(session.Event{Kind: session.ObjectAdded, Objects: []*document.Object{o}})
}

// Modify applies fn to o as if the user dragged, scaled or restyled it.
func (s *Surface) Modify(o *document.Object, fn func(*document.Object)) {
	s.mu.Lock()
	fn(o)
	s.mu.Unlock()
	s.emit(session.Event{Kind: session.ObjectModified, Objects: []*document.Object{o}})
}

// Erase removes o as if the user deleted it.
func (s *Surface) Erase(o *document.Object) {
	s.mu.Lock()
	removed := s.doc.Remove(o)
	s.mu.Unlock()
	if removed > 0 {
		s.emit(session.Event{Kind: session.ObjectRemoved, Objects: []*document.Object{o}})
	}
}

// Pick selects objs as if the user clicked them. An empty call clears the
// selection.
func (s *Surface) Pick(objs ...*document.Object) {
	s.mu.Lock()
	had := len(s.active) > 0
	s.active = append([]*document.Object(nil), objs...)
	s.mu.Unlock()

	kind := session.SelectionCreated
	switch {
	case len(objs) == 0:
		kind = session.SelectionCleared
	case had:
		kind = session.SelectionUpdated
	}
	s.emit(session.Event{Kind: kind, Objects: append([]*document.Object(nil), objs...)})
}

func (s *Surface) SetZoom(z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = z
}

func (s *Surface) ResetViewport() {
	s.SetZoom(1)
}

// Zoom returns the applied zoom.
func (s *Surface) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

func (s *Surface) RequestRender() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders++
}

// Loads returns how many documents were loaded.
func (s *Surface) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// Renders returns how many repaints were requested.
func (s *Surface) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// Subscribers returns the number of registered handlers.
func (s *Surface) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

var (
	_ session.Surface  = (*Surface)(nil)
	_ session.Viewport = (*Surface)(nil)
	_ session.Renderer = (*Surface)(nil)
)
