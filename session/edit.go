package session

import (
	"nocap-editor/document"
	"nocap-editor/layers"
)

// edit runs fn against the attached surface and commits the result when fn
// reports a change.
func (s *Session) edit(fn func(surf Surface, doc *document.Document) (bool, error)) error {
	surf, gen := s.current()
	if surf == nil {
		return ErrNoSurface
	}
	changed, err := fn(surf, surf.Document())
	if err != nil || !changed {
		return err
	}
	return s.commit(surf, gen)
}

// Add places objs on top of the stack and selects the last one.
func (s *Session) Add(objs ...*document.Object) error {
	if len(objs) == 0 {
		return nil
	}
	return s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		doc.Add(objs...)
		surf.SetActiveObjects(objs[len(objs)-1])
		return true, nil
	})
}

// AddImage places an image of the given natural size, scaled down to
// MaxImageWidth and centered on the canvas.
func (s *Session) AddImage(src string, width, height float64) (*document.Object, error) {
	img := document.NewImage(src, width, height)
	err := s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		if width > MaxImageWidth {
			scale := MaxImageWidth / width
			img.ScaleX, img.ScaleY = scale, scale
		}
		cw, ch := doc.Bounds()
		img.Left = (float64(cw) - width*img.ScaleX) / 2
		img.Top = (float64(ch) - height*img.ScaleY) / 2

		doc.Add(img)
		surf.SetActiveObjects(img)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Remove deletes objs from the document.
func (s *Session) Remove(objs ...*document.Object) error {
	return s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		if doc.Remove(objs...) == 0 {
			return false, nil
		}
		surf.SetActiveObjects(without(surf.ActiveObjects(), objs)...)
		return true, nil
	})
}

// RemoveSelected deletes the active objects and clears the selection.
func (s *Session) RemoveSelected() error {
	return s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		active := surf.ActiveObjects()
		if len(active) == 0 {
			return false, nil
		}
		surf.SetActiveObjects()
		return doc.Remove(active...) > 0, nil
	})
}

// Update applies fn to o and commits.
func (s *Session) Update(o *document.Object, fn func(*document.Object)) error {
	return s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		if doc.IndexOf(o) < 0 {
			return false, ErrUnknownObject
		}
		fn(o)
		return true, nil
	})
}

// updateActive applies fn to every active object accepted by match.
func (s *Session) updateActive(match func(*document.Object) bool, fn func(*document.Object)) error {
	return s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		changed := false
		for _, o := range surf.ActiveObjects() {
			if match == nil || match(o) {
				fn(o)
				changed = true
			}
		}
		return changed, nil
	})
}

// SetFill sets the fill color of the active objects.
func (s *Session) SetFill(color string) error {
	return s.updateActive(nil, func(o *document.Object) { o.Fill = color })
}

// SetFontSize sets the font size of the active text objects.
func (s *Session) SetFontSize(size float64) error {
	return s.updateActive((*document.Object).IsText, func(o *document.Object) { o.FontSize = size })
}

// SetFontFamily sets the font family of the active text objects.
func (s *Session) SetFontFamily(family string) error {
	return s.updateActive((*document.Object).IsText, func(o *document.Object) { o.FontFamily = family })
}

// ToggleVisibility flips the visibility of o.
func (s *Session) ToggleVisibility(o *document.Object) error {
	return s.Update(o, func(o *document.Object) { o.Visible = !o.Visible })
}

// SetBackground sets the canvas background color.
func (s *Session) SetBackground(color string) error {
	return s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		if doc.Background == color {
			return false, nil
		}
		doc.Background = color
		return true, nil
	})
}

// Raise moves o one step toward the front. It reports false, without a
// commit, when o is already topmost.
func (s *Session) Raise(o *document.Object) (bool, error) {
	return s.reorder(o, layers.Raise)
}

// Lower moves o one step toward the back.
func (s *Session) Lower(o *document.Object) (bool, error) {
	return s.reorder(o, layers.Lower)
}

func (s *Session) reorder(o *document.Object, move func(*document.Document, *document.Object) bool) (bool, error) {
	moved := false
	err := s.edit(func(surf Surface, doc *document.Document) (bool, error) {
		if doc.IndexOf(o) < 0 {
			return false, ErrUnknownObject
		}
		moved = move(doc, o)
		return moved, nil
	})
	return moved, err
}

// Select makes objs the active selection. An empty call clears it.
func (s *Session) Select(objs ...*document.Object) error {
	surf, gen := s.current()
	if surf == nil {
		return ErrNoSurface
	}
	doc := surf.Document()
	for _, o := range objs {
		if doc.IndexOf(o) < 0 {
			return ErrUnknownObject
		}
	}
	surf.SetActiveObjects(objs...)
	s.refresh(surf, gen, append([]*document.Object{}, objs...))
	return nil
}

func without(list, drop []*document.Object) []*document.Object {
	skip := make(map[*document.Object]bool, len(drop))
	for _, o := range drop {
		skip[o] = true
	}
	out := make([]*document.Object, 0, len(list))
	for _, o := range list {
		if !skip[o] {
			out = append(out, o)
		}
	}
	return out
}
