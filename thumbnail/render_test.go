package thumbnail

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"nocap-editor/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func rgb(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func fullCanvasRect(fill string) *document.Object {
	o := document.NewRect()
	o.Left, o.Top = 0, 0
	o.Width, o.Height = document.DefaultWidth, document.DefaultHeight
	o.RX, o.RY = 0, 0
	o.Fill = fill
	return o
}

func TestPNG_KeepsAspectRatio(t *testing.T) {
	img := decode(t, mustPNG(t, New(90), document.New()))

	assert.Equal(t, 90, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	r, g, b := rgb(img, 45, 25)
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{r, g, b})
}

func TestPNG_DrawsVisibleObjects(t *testing.T) {
	doc := document.New()
	doc.Add(fullCanvasRect("#ff0000"))

	img := decode(t, mustPNG(t, New(90), doc))
	r, g, b := rgb(img, 45, 25)
	assert.GreaterOrEqual(t, r, uint8(250))
	assert.LessOrEqual(t, g, uint8(5))
	assert.LessOrEqual(t, b, uint8(5))
}

func TestPNG_SkipsHiddenObjects(t *testing.T) {
	doc := document.New()
	hidden := fullCanvasRect("#ff0000")
	hidden.Visible = false
	doc.Add(hidden)

	img := decode(t, mustPNG(t, New(90), doc))
	r, g, b := rgb(img, 45, 25)
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{r, g, b})
}

func TestPNG_EveryVariant(t *testing.T) {
	doc := document.New()
	path, err := document.NewPath([]document.Point{{X: 10, Y: 10}, {X: 80, Y: 40}, {X: 120, Y: 5}}, "#000000", 3)
	require.NoError(t, err)
	tri := document.NewTriangle()
	tri.Angle = 30
	doc.Add(document.NewRect(), document.NewLine(), document.NewCircle(), document.NewEllipse(40, 20),
		tri, document.NewTextbox("Hi"), document.NewImage("https://cdn/x.png", 50, 50), path)

	b, err := New(0).PNG(doc)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, decode(t, b).Bounds().Dx())
}

func TestDataURL(t *testing.T) {
	doc := document.New()
	doc.Add(fullCanvasRect("#00ff00"))
	snap, err := document.Serialize(doc)
	require.NoError(t, err)

	url, err := New(90).DataURL(snap)
	require.NoError(t, err)
	assert.Contains(t, url, "data:image/png;base64,")

	raw, err := DecodeDataURL(url)
	require.NoError(t, err)
	_, g, _ := rgb(decode(t, raw), 45, 25)
	assert.GreaterOrEqual(t, g, uint8(250))
}

func TestDataURL_Corrupt(t *testing.T) {
	_, err := New(90).DataURL("{nope")
	assert.Error(t, err)

	_, err = DecodeDataURL("https://example.com/x.png")
	assert.Error(t, err)
}

func mustPNG(t *testing.T, r *Renderer, doc *document.Document) []byte {
	t.Helper()
	b, err := r.PNG(doc)
	require.NoError(t, err)
	return b
}
