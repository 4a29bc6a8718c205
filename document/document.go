// Package document models the editor canvas and its snapshot codec.
package document

import (
	"encoding/json"
	"maps"
)

// Default canvas metadata.
const (
	DefaultWidth      = 900
	DefaultHeight     = 500
	DefaultBackground = "#ffffff"
)

// Document is an ordered sequence of drawable objects plus canvas metadata.
// Objects[0] is the bottom-most object.
type Document struct {
	Version    string
	Objects    []*Object
	Background string
	Width      int
	Height     int

	// Extra keeps unknown top-level fields.
	Extra map[string]json.RawMessage
}

// New returns an empty document with the default canvas metadata.
func New() *Document {
	return &Document{
		Version:    Version,
		Objects:    []*Object{},
		Background: DefaultBackground,
		Width:      DefaultWidth,
		Height:     DefaultHeight,
	}
}

// Empty returns a document with no objects and no canvas metadata. It
// serializes to EmptySnapshot.
func Empty() *Document {
	return &Document{Version: Version, Objects: []*Object{}}
}

// IndexOf returns the stacking index of o, or -1.
func (d *Document) IndexOf(o *Object) int {
	for i, obj := range d.Objects {
		if obj == o {
			return i
		}
	}
	return -1
}

// Add appends objects on top of the stack.
func (d *Document) Add(objs ...*Object) {
	d.Objects = append(d.Objects, objs...)
}

// Remove deletes the given objects and returns how many were found.
func (d *Document) Remove(objs ...*Object) int {
	drop := make(map[*Object]bool, len(objs))
	for _, o := range objs {
		drop[o] = true
	}
	kept := d.Objects[:0]
	removed := 0
	for _, o := range d.Objects {
		if drop[o] {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	clear(d.Objects[len(kept):])
	d.Objects = kept
	return removed
}

// BringForward swaps o with the object directly above it. It reports false
// when o is already on top or not in the document.
func (d *Document) BringForward(o *Object) bool {
	i := d.IndexOf(o)
	if i < 0 || i == len(d.Objects)-1 {
		return false
	}
	d.Objects[i], d.Objects[i+1] = d.Objects[i+1], d.Objects[i]
	return true
}

// SendBackward swaps o with the object directly below it.
func (d *Document) SendBackward(o *Object) bool {
	i := d.IndexOf(o)
	if i <= 0 {
		return false
	}
	d.Objects[i], d.Objects[i-1] = d.Objects[i-1], d.Objects[i]
	return true
}

// Clear removes every object and restores the default background.
func (d *Document) Clear() {
	d.Objects = []*Object{}
	d.Background = DefaultBackground
}

// Bounds returns the canvas size, falling back to the defaults.
func (d *Document) Bounds() (width, height int) {
	width, height = d.Width, d.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return width, height
}

// Clone returns a deep copy of d. Objects in the copy are new pointers in the
// same order.
func (d *Document) Clone() *Document {
	c := *d
	c.Objects = make([]*Object, len(d.Objects))
	for i, o := range d.Objects {
		c.Objects[i] = o.Clone()
	}
	c.Extra = cloneRaw(d.Extra)
	return &c
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	c := *o
	if o.Path != nil {
		c.Path = append(json.RawMessage(nil), o.Path...)
	}
	c.Extra = cloneRaw(o.Extra)
	c.data = cloneRaw(o.data)
	c.decoded = maps.Clone(o.decoded)
	return &c
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	c := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		c[k] = append(json.RawMessage(nil), v...)
	}
	return c
}
