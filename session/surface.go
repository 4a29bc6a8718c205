package session

import (
	"context"
	"fmt"

	"nocap-editor/document"
)

// EventKind identifies a surface notification.
type EventKind int

const (
	ObjectAdded EventKind = iota
	ObjectModified
	ObjectRemoved
	SelectionCreated
	SelectionUpdated
	SelectionCleared
)

func (k EventKind) String() string {
	switch k {
	case ObjectAdded:
		return "object:added"
	case ObjectModified:
		return "object:modified"
	case ObjectRemoved:
		return "object:removed"
	case SelectionCreated:
		return "selection:created"
	case SelectionUpdated:
		return "selection:updated"
	case SelectionCleared:
		return "selection:cleared"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Structural reports whether the event changes the document.
func (k EventKind) Structural() bool {
	return k == ObjectAdded || k == ObjectModified || k == ObjectRemoved
}

// Event is emitted by a surface when the user changes the canvas.
type Event struct {
	Kind    EventKind
	Objects []*document.Object
}

// Surface is the rendering surface a session edits. Programmatic calls
// (LoadDocument, SetActiveObjects) do not emit events; user gestures do.
type Surface interface {
	// LoadDocument replaces the displayed document. It may block until the
	// surface has finished loading, e.g. image sources.
	LoadDocument(ctx context.Context, doc *document.Document) error

	// Document returns the live document. The session mutates it in place.
	Document() *document.Document

	ActiveObjects() []*document.Object
	SetActiveObjects(objs ...*document.Object)

	// Subscribe registers fn for user-originated events and returns a function
	// that removes it.
	Subscribe(fn func(Event)) (cancel func())
}

// Viewport is implemented by surfaces that can zoom.
type Viewport interface {
	SetZoom(z float64)
	ResetViewport()
}

// Renderer is implemented by surfaces that repaint on request after the
// session mutated the document directly.
type Renderer interface {
	RequestRender()
}
