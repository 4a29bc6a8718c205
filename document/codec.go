package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"nocap-editor/core"
)

// Version is the schema version tag written into new snapshots.
const Version = "5.3.0"

// Snapshot is an immutable serialized capture of a Document.
type Snapshot string

type numberField func(*Object) *float64

type stringField func(*Object) *string

var numberFields = map[string]numberField{
	"left":        func(o *Object) *float64 { return &o.Left },
	"top":         func(o *Object) *float64 { return &o.Top },
	"width":       func(o *Object) *float64 { return &o.Width },
	"height":      func(o *Object) *float64 { return &o.Height },
	"scaleX":      func(o *Object) *float64 { return &o.ScaleX },
	"scaleY":      func(o *Object) *float64 { return &o.ScaleY },
	"angle":       func(o *Object) *float64 { return &o.Angle },
	"strokeWidth": func(o *Object) *float64 { return &o.StrokeWidth },
	"opacity":     func(o *Object) *float64 { return &o.Opacity },
	"rx":          func(o *Object) *float64 { return &o.RX },
	"ry":          func(o *Object) *float64 { return &o.RY },
	"radius":      func(o *Object) *float64 { return &o.Radius },
	"fontSize":    func(o *Object) *float64 { return &o.FontSize },
}

var stringFields = map[string]stringField{
	"fill":       func(o *Object) *string { return &o.Fill },
	"stroke":     func(o *Object) *string { return &o.Stroke },
	"text":       func(o *Object) *string { return &o.Text },
	"fontFamily": func(o *Object) *string { return &o.FontFamily },
	"src":        func(o *Object) *string { return &o.Src },
}

// Fields written even when zero. Everything else is omitted when empty.
var alwaysWritten = map[string]bool{
	"left": true, "top": true, "width": true, "height": true,
	"scaleX": true, "scaleY": true, "angle": true, "opacity": true,
	"strokeWidth": true, "fill": true, "stroke": true,
}

var null = []byte("null")

// modeled returns the current value of the modeled field named key.
func (o *Object) modeled(key string) (any, bool) {
	switch {
	case numberFields[key] != nil:
		return *numberFields[key](o), true
	case stringFields[key] != nil:
		return *stringFields[key](o), true
	case key == "visible":
		return o.Visible, true
	case key == "path":
		return string(o.Path), true
	case key == "data":
		return o.Tag, true
	}
	return nil, false
}

// extraWins reports whether the preserved value for key is written instead of
// the modeled field. A preserved value that shadowed a modeled field on decode
// only wins until that field is assigned.
func (o *Object) extraWins(key string) bool {
	if _, ok := o.Extra[key]; !ok {
		return false
	}
	decoded, ok := o.decoded[key]
	if !ok {
		return true
	}
	current, _ := o.modeled(key)
	return current == decoded
}

// MarshalJSON writes the object with sorted keys. Preserved unknown fields win
// over modeled fields of the same name until the modeled field is assigned.
func (o *Object) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(o.Extra)+len(numberFields)+len(stringFields)+4)
	put := func(key string, v any) error {
		if o.extraWins(key) {
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}

	if err := put("type", o.Type); err != nil {
		return nil, err
	}
	for key, field := range numberFields {
		v := *field(o)
		if v == 0 && !alwaysWritten[key] {
			continue
		}
		if err := put(key, v); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
	}
	for key, field := range stringFields {
		v := *field(o)
		if v == "" && !alwaysWritten[key] {
			continue
		}
		if err := put(key, v); err != nil {
			return nil, err
		}
	}
	if err := put("visible", o.Visible); err != nil {
		return nil, err
	}
	if len(o.Path) > 0 {
		if err := put("path", o.Path); err != nil {
			return nil, fmt.Errorf("field path: %w", err)
		}
	}
	if o.Tag != "" || len(o.data) > 0 {
		data := make(map[string]json.RawMessage, len(o.data)+1)
		for k, v := range o.data {
			c, err := canonical(v)
			if err != nil {
				return nil, fmt.Errorf("field data.%s: %w", k, err)
			}
			data[k] = c
		}
		if o.Tag != "" {
			tag, _ := json.Marshal(o.Tag)
			data["type"] = tag
		}
		if err := put("data", data); err != nil {
			return nil, err
		}
	}
	for k, v := range o.Extra {
		if !o.extraWins(k) {
			continue
		}
		c, err := canonical(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = c
	}
	return json.Marshal(fields)
}

// canonical rewrites a raw value with the keys of every nested object sorted.
// Numbers keep their original text.
func canonical(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON reads an object record. Values that do not fit the modeled
// field type are kept verbatim in Extra.
func (o *Object) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("object record is null")
	}

	*o = *newObject("")
	keep := func(key string, raw json.RawMessage) {
		if o.Extra == nil {
			o.Extra = make(map[string]json.RawMessage)
		}
		o.Extra[key] = raw
	}

	for key, raw := range fields {
		switch {
		case key == "type":
			var kind string
			if err := json.Unmarshal(raw, &kind); err != nil || kind == "" {
				return errors.New("object record has no type")
			}
			o.Type = Kind(kind)
		case key == "visible":
			if err := json.Unmarshal(raw, &o.Visible); err != nil || bytes.Equal(raw, null) {
				o.Visible = true
				keep(key, raw)
			}
		case key == "path":
			if bytes.Equal(raw, null) {
				keep(key, raw)
				continue
			}
			o.Path = append(json.RawMessage(nil), raw...)
		case key == "data":
			if !o.readData(raw) {
				keep(key, raw)
			}
		case numberFields[key] != nil:
			if bytes.Equal(raw, null) || json.Unmarshal(raw, numberFields[key](o)) != nil {
				keep(key, raw)
			}
		case stringFields[key] != nil:
			if bytes.Equal(raw, null) || json.Unmarshal(raw, stringFields[key](o)) != nil {
				keep(key, raw)
			}
		default:
			keep(key, raw)
		}
	}
	if o.Type == "" {
		return errors.New("object record has no type")
	}
	for key := range o.Extra {
		if v, ok := o.modeled(key); ok {
			if o.decoded == nil {
				o.decoded = make(map[string]any)
			}
			o.decoded[key] = v
		}
	}
	return nil
}

func (o *Object) readData(raw json.RawMessage) bool {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return false
	}
	if tagRaw, ok := data["type"]; ok {
		var tag string
		if err := json.Unmarshal(tagRaw, &tag); err != nil {
			return false
		}
		o.Tag = tag
		delete(data, "type")
	}
	if len(data) > 0 {
		o.data = data
	}
	return true
}

// MarshalJSON writes the document with sorted keys.
func (d *Document) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(d.Extra)+5)
	for k, v := range d.Extra {
		c, err := canonical(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = c
	}

	version := d.Version
	if version == "" {
		version = Version
	}
	objects := d.Objects
	if objects == nil {
		objects = []*Object{}
	}

	var err error
	if fields["version"], err = json.Marshal(version); err != nil {
		return nil, err
	}
	if fields["objects"], err = json.Marshal(objects); err != nil {
		return nil, err
	}
	if d.Background != "" {
		fields["background"], _ = json.Marshal(d.Background)
	}
	if d.Width != 0 {
		fields["width"], _ = json.Marshal(d.Width)
	}
	if d.Height != 0 {
		fields["height"], _ = json.Marshal(d.Height)
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a document. A missing objects array yields an empty
// document; a non-array one is an error.
func (d *Document) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("document is null")
	}

	*d = Document{Objects: []*Object{}}
	for key, raw := range fields {
		var err error
		switch key {
		case "version":
			err = json.Unmarshal(raw, &d.Version)
		case "objects":
			if bytes.Equal(raw, null) {
				continue
			}
			err = json.Unmarshal(raw, &d.Objects)
		case "background":
			err = json.Unmarshal(raw, &d.Background)
		case "width":
			err = json.Unmarshal(raw, &d.Width)
		case "height":
			err = json.Unmarshal(raw, &d.Height)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	for i, o := range d.Objects {
		if o == nil {
			return fmt.Errorf("object %d is null", i)
		}
	}
	return nil
}

// Serialize captures doc as a canonical snapshot: keys are sorted at every
// level, preserved unknown fields included, so two structurally equal
// documents always produce the same string.
func Serialize(doc *Document) (Snapshot, error) {
	if doc == nil {
		doc = New()
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return Snapshot(b), nil
}

// Deserialize reconstructs a Document from a snapshot. Failures match
// core.ErrCorruptSnapshot.
func Deserialize(s Snapshot) (*Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptSnapshot, err)
	}
	return &doc, nil
}

// EmptySnapshot is the content of a freshly created project.
func EmptySnapshot() Snapshot {
	return Snapshot(`{"objects":[],"version":"` + Version + `"}`)
}
