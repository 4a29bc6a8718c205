package document

import (
	"encoding/json"
	"fmt"
)

// Kind is the underlying primitive an object is drawn with.
type Kind string

const (
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindEllipse  Kind = "ellipse"
	KindTriangle Kind = "triangle"
	KindPath     Kind = "path"
	KindTextbox  Kind = "textbox"
	KindIText    Kind = "i-text"
	KindImage    Kind = "image"
)

// Variant is the logical kind of a drawable object as the editor presents it.
type Variant string

const (
	VariantUnknown   Variant = ""
	VariantRectangle Variant = "rectangle"
	VariantEllipse   Variant = "ellipse"
	VariantTriangle  Variant = "triangle"
	VariantLine      Variant = "line"
	VariantPath      Variant = "path"
	VariantText      Variant = "text"
	VariantImage     Variant = "image"
)

// Semantic tags written by the editor's own tools.
const (
	TagRect = "rect"
	TagLine = "line"
)

// Object is a single drawable element. Its stacking index is its position in
// the owning Document's Objects slice.
type Object struct {
	Type Kind
	// Tag disambiguates variants sharing a primitive, e.g. a line is a rect
	// tagged "line". Serialized as data.type.
	Tag string

	Left        float64
	Top         float64
	Width       float64
	Height      float64
	ScaleX      float64
	ScaleY      float64
	Angle       float64
	Fill        string
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	Visible     bool

	RX         float64
	RY         float64
	Radius     float64
	Text       string
	FontSize   float64
	FontFamily string
	Src        string
	Path       json.RawMessage

	// Extra keeps fields this package does not model so they survive a
	// load-then-save round trip.
	Extra map[string]json.RawMessage

	// data holds data.* keys other than type.
	data map[string]json.RawMessage
	// decoded holds the modeled value of each field shadowed by Extra at
	// decode time.
	decoded map[string]any
}

var variantsByName = map[string]Variant{
	"rect":      VariantRectangle,
	"rectangle": VariantRectangle,
	"line":      VariantLine,
	"circle":    VariantEllipse,
	"ellipse":   VariantEllipse,
	"triangle":  VariantTriangle,
	"path":      VariantPath,
	"textbox":   VariantText,
	"i-text":    VariantText,
	"text":      VariantText,
	"image":     VariantImage,
}

// Variant resolves the semantic tag first and falls back to the primitive
// type when the tag is missing or not recognized.
func (o *Object) Variant() Variant {
	if v, ok := variantsByName[o.Tag]; ok {
		return v
	}
	if v, ok := variantsByName[string(o.Type)]; ok {
		return v
	}
	return VariantUnknown
}

// IsText reports whether the object is an editable text primitive.
func (o *Object) IsText() bool {
	return o.Type == KindTextbox || o.Type == KindIText
}

func newObject(kind Kind) *Object {
	return &Object{
		Type:    kind,
		ScaleX:  1,
		ScaleY:  1,
		Opacity: 1,
		Visible: true,
	}
}

// NewRect returns the toolbar's default rectangle.
func NewRect() *Object {
	o := newObject(KindRect)
	o.Tag = TagRect
	o.Left, o.Top = 150, 150
	o.Width, o.Height = 150, 150
	o.RX, o.RY = 8, 8
	o.Fill = "#3b82f6"
	return o
}

// NewLine returns a thin rounded rect tagged as a line.
func NewLine() *Object {
	o := newObject(KindRect)
	o.Tag = TagLine
	o.Left, o.Top = 300, 300
	o.Width, o.Height = 200, 4
	o.RX, o.RY = 2, 2
	o.Fill = "#6366f1"
	return o
}

// NewCircle returns the toolbar's default circle.
func NewCircle() *Object {
	o := newObject(KindCircle)
	o.Left, o.Top = 200, 200
	o.Radius = 75
	o.Width, o.Height = 150, 150
	o.Fill = "#10b981"
	return o
}

// NewEllipse returns an ellipse with the given radii.
func NewEllipse(rx, ry float64) *Object {
	o := newObject(KindEllipse)
	o.Left, o.Top = 200, 200
	o.RX, o.RY = rx, ry
	o.Width, o.Height = 2*rx, 2*ry
	o.Fill = "#10b981"
	return o
}

// NewTriangle returns the toolbar's default triangle.
func NewTriangle() *Object {
	o := newObject(KindTriangle)
	o.Left, o.Top = 250, 250
	o.Width, o.Height = 150, 150
	o.Fill = "#f59e0b"
	return o
}

// NewTextbox returns a text box with the toolbar's default styling.
func NewTextbox(text string) *Object {
	o := newObject(KindTextbox)
	o.Left, o.Top = 100, 100
	o.Width, o.Height = 200, 45
	o.Text = text
	o.Fill = "#000000"
	o.FontSize = 32
	o.FontFamily = "Inter, system-ui, sans-serif"
	return o
}

// NewImage returns an image object of its natural size.
func NewImage(src string, width, height float64) *Object {
	o := newObject(KindImage)
	o.Src = src
	o.Width, o.Height = width, height
	return o
}

// Point is a vertex of a freehand path.
type Point struct {
	X, Y float64
}

// NewPath returns a freehand stroke through points.
func NewPath(points []Point, stroke string, width float64) (*Object, error) {
	o := newObject(KindPath)
	o.Stroke = stroke
	o.StrokeWidth = width

	cmds := make([][]any, 0, len(points))
	minX, minY, maxX, maxY := 0.0, 0.0, 0.0, 0.0
	for i, p := range points {
		op := "L"
		if i == 0 {
			op = "M"
			minX, minY, maxX, maxY = p.X, p.Y, p.X, p.Y
		}
		cmds = append(cmds, []any{op, p.X, p.Y})
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	raw, err := json.Marshal(cmds)
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}
	o.Path = raw
	o.Left, o.Top = minX, minY
	o.Width, o.Height = maxX-minX, maxY-minY
	return o, nil
}
