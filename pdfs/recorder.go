package pdfs

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
)

// Op is one drawing call captured by Recorder
type Op struct {
	Kind  string // "text" | "text-right" | "line" | "rect" | "image" | "font"
	X, Y  float64
	W, H  float64
	Text  string
	Size  float64
	Color RGB
}

// Recorder is a Composer that keeps drawing calls per page instead of
// producing a PDF. Output is a plain-text dump of the calls.
type Recorder struct {
	Paper PaperSize
	Pages [][]Op

	cur       int
	fontSize  float64
	textColor RGB
}

var _ Composer = (*Recorder)(nil)

func NewRecorder(paper PaperSize) *Recorder {
	return &Recorder{Paper: paper, cur: -1, fontSize: 12}
}

func (r *Recorder) PaperSize() PaperSize     { return r.Paper }
func (r *Recorder) Orientation() string      { return "P" }
func (r *Recorder) PageCount() int           { return len(r.Pages) }
func (r *Recorder) GetCurrentPageIndex() int { return r.cur }

func (r *Recorder) SelectPage(index int) error {
	if index < 0 || index >= len(r.Pages) {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, index)
	}
	r.cur = index
	return nil
}

func (r *Recorder) AppendBlankPage() {
	r.Pages = append(r.Pages, nil)
	r.cur = len(r.Pages) - 1
}

func (r *Recorder) add(op Op) {
	if r.cur < 0 {
		r.AppendBlankPage()
	}
	r.Pages[r.cur] = append(r.Pages[r.cur], op)
}

func (r *Recorder) SetFont(_ string, _ string, size float64) {
	r.fontSize = size
}

func (r *Recorder) SetTextColor(c RGB) { r.textColor = c }
func (r *Recorder) SetDrawColor(RGB)   {}

func (r *Recorder) Text(x, y float64, text string) {
	r.add(Op{Kind: "text", X: x, Y: y, Text: text, Size: r.fontSize, Color: r.textColor})
}

func (r *Recorder) TextRight(x, y float64, text string) {
	r.add(Op{Kind: "text-right", X: x, Y: y, Text: text, Size: r.fontSize, Color: r.textColor})
}

// SplitText assumes an average glyph width of half the font size
func (r *Recorder) SplitText(text string, width float64) []string {
	perLine := int(width / (r.fontSize / 2))
	if perLine < 1 {
		perLine = 1
	}
	var lines []string
	var cur string
	for _, w := range strings.Fields(text) {
		switch {
		case cur == "":
			cur = w
		case len(cur)+1+len(w) <= perLine:
			cur += " " + w
		default:
			lines = append(lines, cur)
			cur = w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func (r *Recorder) Line(x1, y1, x2, y2 float64) {
	r.add(Op{Kind: "line", X: x1, Y: y1, W: x2 - x1, H: y2 - y1})
}

func (r *Recorder) Rect(x, y, w, h float64) {
	r.add(Op{Kind: "rect", X: x, Y: y, W: w, H: h})
}

func (r *Recorder) Image(img image.Image, x, y, w, h float64) error {
	if img == nil {
		return fmt.Errorf("pdfs: nil image")
	}
	r.add(Op{Kind: "image", X: x, Y: y, W: w, H: h})
	return nil
}

// Texts returns every text drawn on page index, in order
func (r *Recorder) Texts(index int) []string {
	var out []string
	for _, op := range r.Pages[index] {
		if op.Kind == "text" || op.Kind == "text-right" {
			out = append(out, op.Text)
		}
	}
	return out
}

// FindText returns the page index and op of the first text equal to s
func (r *Recorder) FindText(s string) (int, Op, bool) {
	for i, page := range r.Pages {
		for _, op := range page {
			if (op.Kind == "text" || op.Kind == "text-right") && op.Text == s {
				return i, op, true
			}
		}
	}
	return -1, Op{}, false
}

func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for i, page := range r.Pages {
		fmt.Fprintf(&buf, "page %d\n", i+1)
		for _, op := range page {
			fmt.Fprintf(&buf, "  %s %.1f,%.1f %.1fx%.1f %q\n", op.Kind, op.X, op.Y, op.W, op.H, op.Text)
		}
	}
	return buf.WriteTo(w)
}

func (r *Recorder) WriteToFile(filepath string) error {
	f, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if _, err = r.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (r *Recorder) ProduceBytes() ([]byte, error) {
	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	return buf.Bytes(), err
}
