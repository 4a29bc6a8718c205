// Package thumbnail rasterizes documents into the small PNG previews shown on
// project cards.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"nocap-editor/document"

	"github.com/gogpu/gg"
)

// DefaultWidth is the pixel width of a project card preview.
const DefaultWidth = 320

const dataURLPrefix = "data:image/png;base64,"

// Renderer draws documents at a fixed output width, keeping the canvas aspect
// ratio. Text is drawn as a bar and images as a placeholder block.
type Renderer struct {
	width int
}

// New returns a renderer producing previews width pixels wide.
func New(width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{width: width}
}

// PNG renders doc and encodes it as PNG.
func (r *Renderer) PNG(doc *document.Document) ([]byte, error) {
	cw, ch := doc.Bounds()
	scale := float64(r.width) / float64(cw)
	height := max(1, int(math.Round(float64(ch)*scale)))

	dc := gg.NewContext(r.width, height)
	defer dc.Close()

	bg := gg.White
	if c, ok := parseColor(doc.Background); ok {
		bg = c
	}
	dc.ClearWithColor(bg)
	dc.Scale(scale, scale)

	for i, o := range doc.Objects {
		if !o.Visible {
			continue
		}
		if err := drawObject(dc, o); err != nil {
			return nil, fmt.Errorf("draw object %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL decodes a snapshot and renders it as a PNG data URL. Its signature
// matches persistence.Thumbnailer.
func (r *Renderer) DataURL(s document.Snapshot) (string, error) {
	doc, err := document.Deserialize(s)
	if err != nil {
		return "", err
	}
	png, err := r.PNG(doc)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeDataURL returns the PNG bytes of a data URL produced by DataURL.
func DecodeDataURL(url string) ([]byte, error) {
	if !strings.HasPrefix(url, dataURLPrefix) {
		return nil, fmt.Errorf("not a png data url")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(url, dataURLPrefix))
}

func parseColor(s string) (gg.RGBA, bool) {
	if !strings.HasPrefix(s, "#") {
		return gg.RGBA{}, false
	}
	switch len(s) {
	case 4, 5, 7, 9:
		return gg.Hex(s), true
	}
	return gg.RGBA{}, false
}

func setColor(dc *gg.Context, s string, opacity float64) bool {
	c, ok := parseColor(s)
	if !ok {
		return false
	}
	dc.SetRGBA(c.R, c.G, c.B, c.A*opacity)
	return true
}

func drawObject(dc *gg.Context, o *document.Object) error {
	w, h := o.Width*o.ScaleX, o.Height*o.ScaleY
	shape := shapeOf(o, w, h)
	if shape == nil {
		return nil
	}

	dc.Push()
	defer dc.Pop()
	if o.Angle != 0 {
		dc.RotateAbout(o.Angle*math.Pi/180, o.Left, o.Top)
	}

	fill := o.Fill
	switch o.Variant() {
	case document.VariantImage:
		fill = "#d4d4d8"
	case document.VariantPath:
		fill = ""
	}
	if setColor(dc, fill, o.Opacity) {
		shape(dc)
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	if o.StrokeWidth > 0 && setColor(dc, o.Stroke, o.Opacity) {
		dc.SetLineWidth(o.StrokeWidth)
		shape(dc)
		if err := dc.Stroke(); err != nil {
			return err
		}
	}
	return nil
}

// shapeOf returns a function appending the outline of o to the current path.
func shapeOf(o *document.Object, w, h float64) func(*gg.Context) {
	x, y := o.Left, o.Top
	switch o.Variant() {
	case document.VariantRectangle, document.VariantLine, document.VariantImage:
		r := o.RX * o.ScaleX
		return func(dc *gg.Context) {
			if r > 0 {
				dc.DrawRoundedRectangle(x, y, w, h, r)
				return
			}
			dc.DrawRectangle(x, y, w, h)
		}
	case document.VariantEllipse:
		rx, ry := w/2, h/2
		if o.Type == document.KindCircle && o.Radius > 0 {
			rx, ry = o.Radius*o.ScaleX, o.Radius*o.ScaleY
		} else if o.RX > 0 && o.RY > 0 {
			rx, ry = o.RX*o.ScaleX, o.RY*o.ScaleY
		}
		return func(dc *gg.Context) { dc.DrawEllipse(x+rx, y+ry, rx, ry) }
	case document.VariantTriangle:
		return func(dc *gg.Context) {
			dc.MoveTo(x+w/2, y)
			dc.LineTo(x+w, y+h)
			dc.LineTo(x, y+h)
			dc.ClosePath()
		}
	case document.VariantText:
		bar := min(h, o.FontSize*o.ScaleY)
		if bar <= 0 {
			bar = h
		}
		return func(dc *gg.Context) { dc.DrawRectangle(x, y+(h-bar)/2, w, bar*0.6) }
	case document.VariantPath:
		cmds := pathCommands(o.Path)
		if len(cmds) == 0 {
			return nil
		}
		return func(dc *gg.Context) { tracePath(dc, cmds) }
	}
	return nil
}

type pathCommand struct {
	op   string
	args []float64
}

// pathCommands decodes [["M",x,y],["L",x,y],...]. Malformed entries are
// skipped.
func pathCommands(raw json.RawMessage) []pathCommand {
	var entries [][]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	cmds := make([]pathCommand, 0, len(entries))
	for _, e := range entries {
		if len(e) == 0 {
			continue
		}
		var cmd pathCommand
		if json.Unmarshal(e[0], &cmd.op) != nil {
			continue
		}
		ok := true
		for _, a := range e[1:] {
			var f float64
			if json.Unmarshal(a, &f) != nil {
				ok = false
				break
			}
			cmd.args = append(cmd.args, f)
		}
		if ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func tracePath(dc *gg.Context, cmds []pathCommand) {
	for _, c := range cmds {
		a := c.args
		switch {
		case c.op == "M" && len(a) >= 2:
			dc.MoveTo(a[0], a[1])
		case c.op == "L" && len(a) >= 2:
			dc.LineTo(a[0], a[1])
		case c.op == "Q" && len(a) >= 4:
			dc.QuadraticTo(a[0], a[1], a[2], a[3])
		case c.op == "C" && len(a) >= 6:
			dc.CubicTo(a[0], a[1], a[2], a[3], a[4], a[5])
		case c.op == "Z" || c.op == "z":
			dc.ClosePath()
		}
	}
}
