// Package layers derives the layers panel from a document: objects ordered
// front to back, the active selection, and one-step reordering.
package layers

import (
	"strings"

	"nocap-editor/document"
)

// Icon names a layers panel glyph.
type Icon string

const (
	IconSquare   Icon = "square"
	IconLine     Icon = "minus"
	IconCircle   Icon = "circle"
	IconTriangle Icon = "triangle"
	IconImage    Icon = "image"
	IconPencil   Icon = "pencil"
	IconText     Icon = "type"
	IconLayers   Icon = "layers"
)

const maxLabelRunes = 15

// Selector exposes the surface's active objects.
type Selector interface {
	ActiveObjects() []*document.Object
}

// Entry is a single row of the layers panel.
type Entry struct {
	Object   *document.Object
	Label    string
	Icon     Icon
	Visible  bool
	Selected bool
	CanRaise bool
	CanLower bool
}

// View is the layers panel for one document state. Entries are topmost first.
type View struct {
	Entries   []Entry
	Selection []*document.Object
}

// Len returns the number of objects in the view.
func (v View) Len() int { return len(v.Entries) }

// Empty reports whether the canvas has no objects.
func (v View) Empty() bool { return len(v.Entries) == 0 }

// OrderedObjects returns the document's objects topmost first. The returned
// slice is a copy; the objects are shared.
func OrderedObjects(doc *document.Document) []*document.Object {
	if doc == nil {
		return []*document.Object{}
	}
	out := make([]*document.Object, len(doc.Objects))
	for i, o := range doc.Objects {
		out[len(doc.Objects)-1-i] = o
	}
	return out
}

// ActiveSelection returns a copy of the surface's active objects.
func ActiveSelection(s Selector) []*document.Object {
	if s == nil {
		return []*document.Object{}
	}
	return append([]*document.Object{}, s.ActiveObjects()...)
}

// Raise moves o one step toward the front. It reports false when o is already
// topmost or not part of doc.
func Raise(doc *document.Document, o *document.Object) bool {
	if doc == nil {
		return false
	}
	return doc.BringForward(o)
}

// Lower moves o one step toward the back.
func Lower(doc *document.Document, o *document.Object) bool {
	if doc == nil {
		return false
	}
	return doc.SendBackward(o)
}

// Build computes the view of doc with the given selection.
func Build(doc *document.Document, selection []*document.Object) View {
	ordered := OrderedObjects(doc)
	selected := make(map[*document.Object]bool, len(selection))
	for _, o := range selection {
		selected[o] = true
	}

	entries := make([]Entry, len(ordered))
	for i, o := range ordered {
		entries[i] = Entry{
			Object:   o,
			Label:    Label(o),
			Icon:     IconFor(o),
			Visible:  o.Visible,
			Selected: selected[o],
			CanRaise: i > 0,
			CanLower: i < len(ordered)-1,
		}
	}
	return View{
		Entries:   entries,
		Selection: append([]*document.Object{}, selection...),
	}
}

func typeName(o *document.Object) string {
	if o.Tag != "" {
		return o.Tag
	}
	return string(o.Type)
}

// Label is the panel caption of o: the start of its text for text objects,
// the capitalized type name otherwise.
func Label(o *document.Object) string {
	name := typeName(o)
	if name == string(document.KindTextbox) || name == string(document.KindIText) {
		r := []rune(o.Text)
		if len(r) == 0 {
			return "Text"
		}
		if len(r) > maxLabelRunes {
			r = r[:maxLabelRunes]
		}
		return string(r)
	}
	if name == "" {
		return ""
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// IconFor returns the panel glyph of o.
func IconFor(o *document.Object) Icon {
	switch typeName(o) {
	case "rect":
		return IconSquare
	case "line":
		return IconLine
	case "circle":
		return IconCircle
	case "triangle":
		return IconTriangle
	case "image":
		return IconImage
	case "path":
		return IconPencil
	case "textbox", "i-text":
		return IconText
	}
	return IconLayers
}
