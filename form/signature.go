package form

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/vector"
)

const dataURLPrefix = "data:image/png;base64,"

var ErrBadDataURL = errors.New("form: not a png data url")

// SignaturePad is a white canvas that records freehand strokes.
type SignaturePad struct {
	def PadRef

	mu  sync.Mutex
	img *image.RGBA
}

func NewSignaturePad(def PadRef) *SignaturePad {
	p := &SignaturePad{def: def, img: image.NewRGBA(image.Rect(0, 0, def.Width, def.Height))}
	p.Clear()
	return p
}

func (p *SignaturePad) ID() string      { return p.def.ID }
func (p *SignaturePad) Label() string   { return p.def.Label }
func (p *SignaturePad) Section() string { return p.def.Section }
func (p *SignaturePad) Required() bool  { return p.def.Required }
func (p *SignaturePad) Bounds() image.Rectangle {
	return p.img.Bounds()
}

func (p *SignaturePad) Clear() {
	p.mu.Lock()
	draw.Draw(p.img, p.img.Bounds(), image.White, image.Point{}, draw.Src)
	p.mu.Unlock()
}

// Stroke draws a polyline of the given width in black.
// A single point leaves a dot.
func (p *SignaturePad) Stroke(width float32, pts ...image.Point) {
	if len(pts) == 0 {
		return
	}
	if width <= 0 {
		width = 2
	}
	b := p.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	half := width / 2
	if len(pts) == 1 {
		x, y := float32(pts[0].X), float32(pts[0].Y)
		z.MoveTo(x-half, y-half)
		z.LineTo(x+half, y-half)
		z.LineTo(x+half, y+half)
		z.LineTo(x-half, y+half)
		z.ClosePath()
	}
	for i := 1; i < len(pts); i++ {
		segment(z, pts[i-1], pts[i], half)
	}
	p.mu.Lock()
	z.Draw(p.img, b, image.NewUniform(color.Black), image.Point{})
	p.mu.Unlock()
}

// segment adds the quad covering a-b with the given half width
func segment(z *vector.Rasterizer, a, b image.Point, half float32) {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	l := math.Hypot(dx, dy)
	if l == 0 {
		dx, l = 1, 1
	}
	nx, ny := float32(-dy/l)*half, float32(dx/l)*half
	ax, ay, bx, by := float32(a.X), float32(a.Y), float32(b.X), float32(b.Y)
	z.MoveTo(ax+nx, ay+ny)
	z.LineTo(bx+nx, by+ny)
	z.LineTo(bx-nx, by-ny)
	z.LineTo(ax-nx, ay-ny)
	z.ClosePath()
}

// Signed reports whether any pixel is not pure white
func (p *SignaturePad) Signed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pix := p.img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] < 0xff || pix[i+1] < 0xff || pix[i+2] < 0xff {
			return true
		}
	}
	return false
}

// Image returns a copy of the canvas
func (p *SignaturePad) Image() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := image.NewRGBA(p.img.Bounds())
	copy(cp.Pix, p.img.Pix)
	return cp
}

// DataURL encodes the canvas as a png data url, "" when the pad is blank
func (p *SignaturePad) DataURL() (string, error) {
	if !p.Signed() {
		return "", nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image()); err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Load decodes dataURL on its own goroutine and paints it over the canvas.
// The returned channel yields the outcome once and is then closed.
func (p *SignaturePad) Load(dataURL string) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- p.paint(dataURL)
	}()
	return done
}

func (p *SignaturePad) paint(dataURL string) error {
	if dataURL == "" {
		return nil
	}
	encoded, ok := strings.CutPrefix(dataURL, dataURLPrefix)
	if !ok {
		return fmt.Errorf("%w (pad %s)", ErrBadDataURL, p.def.ID)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("form: pad %s: %w", p.def.ID, err)
	}
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("form: pad %s: %w", p.def.ID, err)
	}
	p.mu.Lock()
	draw.Draw(p.img, p.img.Bounds(), src, src.Bounds().Min, draw.Over)
	p.mu.Unlock()
	return nil
}
