// Package textimg rasterizes a section offline by typesetting its labels and
// values with a bitmap font. No browser needed.
package textimg

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/rasterize"
)

var (
	titleColor = color.RGBA{R: 112, G: 48, B: 160, A: 255}
	labelColor = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	boxColor   = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

const (
	padding    = 16
	lineHeight = 18
	sigWidth   = 320
	sigHeight  = 120
)

type Rasterizer struct {
	Width int // px, default 900
}

var _ rasterize.Rasterizer = (*Rasterizer)(nil)

type line struct {
	text   string
	col    color.Color
	indent int
	sig    *rasterize.Signature
}

func (r *Rasterizer) Rasterize(ctx context.Context, v *rasterize.SectionView) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width := r.Width
	if width <= 0 {
		width = 900
	}
	face := basicfont.Face7x13
	cols := (width - 2*padding) / face.Advance

	lines := []line{{text: v.Title, col: titleColor}}
	if v.Expanded {
		for _, row := range v.Rows {
			lines = append(lines, rowLines(row, cols)...)
		}
		for i := range v.Signatures {
			s := &v.Signatures[i]
			lines = append(lines, line{text: s.Label + ":", col: labelColor}, line{sig: s})
		}
	}

	height := 2 * padding
	for _, l := range lines {
		height += l.height()
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Face: face}
	y := padding
	for _, l := range lines {
		if l.sig != nil {
			drawSignature(img, l.sig, padding, y)
		} else {
			d.Src = image.NewUniform(l.col)
			d.Dot = fixed.P(padding+l.indent*face.Advance, y+face.Ascent)
			d.DrawString(l.text)
		}
		y += l.height()
	}
	return img, nil
}

func (l line) height() int {
	if l.sig != nil {
		return sigHeight + lineHeight/2
	}
	return lineHeight
}

func rowLines(row rasterize.Row, cols int) []line {
	switch row.Kind {
	case form.KindCheckbox:
		mark := "[ ] "
		if row.Value == "Yes" {
			mark = "[x] "
		}
		return []line{{text: mark + row.Label, col: color.Black}}
	case form.KindRadio:
		var sb strings.Builder
		for i, o := range row.Options {
			if i > 0 {
				sb.WriteString("   ")
			}
			if o.Checked {
				sb.WriteString("(x) ")
			} else {
				sb.WriteString("( ) ")
			}
			sb.WriteString(o.Label)
		}
		out := []line{{text: row.Label, col: labelColor}}
		for _, w := range wrap(sb.String(), cols-2) {
			out = append(out, line{text: w, col: color.Black, indent: 2})
		}
		return out
	}
	out := []line{{text: row.Label + ":", col: labelColor}}
	for _, w := range wrap(row.Value, cols-2) {
		out = append(out, line{text: w, col: color.Black, indent: 2})
	}
	return out
}

// wrap breaks text on spaces and newlines into lines of at most n runes
func wrap(text string, n int) []string {
	if n < 1 {
		n = 1
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := ""
		for _, w := range words {
			for len([]rune(w)) > n {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				rs := []rune(w)
				out = append(out, string(rs[:n]))
				w = string(rs[n:])
			}
			switch {
			case cur == "":
				cur = w
			case len([]rune(cur))+1+len([]rune(w)) <= n:
				cur += " " + w
			default:
				out = append(out, cur)
				cur = w
			}
		}
		out = append(out, cur)
	}
	return out
}

func drawSignature(dst *image.RGBA, s *rasterize.Signature, x, y int) {
	box := image.Rect(x, y, x+sigWidth, y+sigHeight)
	if s.Image != nil {
		xdraw.CatmullRom.Scale(dst, box.Inset(1), s.Image, s.Image.Bounds(), xdraw.Over, nil)
	}
	c := boxColor
	for px := box.Min.X; px < box.Max.X; px++ {
		dst.Set(px, box.Min.Y, c)
		dst.Set(px, box.Max.Y-1, c)
	}
	for py := box.Min.Y; py < box.Max.Y; py++ {
		dst.Set(box.Min.X, py, c)
		dst.Set(box.Max.X-1, py, c)
	}
}
