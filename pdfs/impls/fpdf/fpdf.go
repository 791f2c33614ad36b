// Package fpdf implements pdfs.Composer on github.com/go-pdf/fpdf.
package fpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"

	lowimpl "github.com/go-pdf/fpdf"

	"github.com/zeptools/clinsup/pdfs"
	"github.com/zeptools/clinsup/rw"
)

type Composer struct {
	paper     pdfs.PaperSize
	internal  *lowimpl.Fpdf
	translate func(string) string
	images    int
}

// Ensure fpdf.Composer implements pdfs.Composer interface
var _ pdfs.Composer = (*Composer)(nil)

// New returns a portrait document in pt with no automatic page breaks.
// Text uses the core fonts with cp1252 translation.
func New(paper pdfs.PaperSize, title string) *Composer {
	doc := lowimpl.NewCustom(&lowimpl.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           lowimpl.SizeType{Wd: paper.Width, Ht: paper.Height},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	doc.SetCreator("clinsup", true)
	if title != "" {
		doc.SetTitle(title, true)
	}
	doc.SetFont("Helvetica", "", 12)
	return &Composer{
		paper:     paper,
		internal:  doc,
		translate: doc.UnicodeTranslatorFromDescriptor(""),
	}
}

func (c *Composer) PaperSize() pdfs.PaperSize { return c.paper }
func (c *Composer) Orientation() string       { return "P" }
func (c *Composer) PageCount() int            { return c.internal.PageCount() }

func (c *Composer) GetCurrentPageIndex() int {
	return c.internal.PageNo() - 1
}

func (c *Composer) SelectPage(index int) error {
	if index < 0 || index >= c.internal.PageCount() {
		return fmt.Errorf("%w: %d", pdfs.ErrPageOutOfRange, index)
	}
	c.internal.SetPage(index + 1)
	return nil
}

func (c *Composer) AppendBlankPage() {
	c.internal.AddPage()
}

func (c *Composer) SetFont(family string, style string, size float64) {
	c.internal.SetFont(family, style, size)
}

func (c *Composer) SetTextColor(rgb pdfs.RGB) {
	c.internal.SetTextColor(int(rgb.R), int(rgb.G), int(rgb.B))
}

func (c *Composer) SetDrawColor(rgb pdfs.RGB) {
	c.internal.SetDrawColor(int(rgb.R), int(rgb.G), int(rgb.B))
}

func (c *Composer) Text(x float64, y float64, text string) {
	c.internal.Text(x, y, c.translate(text))
}

func (c *Composer) TextRight(x float64, y float64, text string) {
	s := c.translate(text)
	c.internal.Text(x-c.internal.GetStringWidth(s), y, s)
}

func (c *Composer) SplitText(text string, width float64) []string {
	return c.internal.SplitText(text, width)
}

func (c *Composer) Line(x1, y1, x2, y2 float64) {
	c.internal.Line(x1, y1, x2, y2)
}

func (c *Composer) Rect(x, y, w, h float64) {
	c.internal.Rect(x, y, w, h, "D")
}

func (c *Composer) Image(img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	c.images++
	name := "img" + strconv.Itoa(c.images)
	opts := lowimpl.ImageOptions{ImageType: "PNG"}
	c.internal.RegisterImageOptionsReader(name, opts, &buf)
	if err := c.internal.Error(); err != nil {
		return err
	}
	c.internal.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return c.internal.Error()
}

func (c *Composer) WriteTo(w io.Writer) (int64, error) {
	cw := rw.NewCountWriter(w)
	err := c.internal.Output(cw)
	return cw.BytesWritten(), err
}

func (c *Composer) WriteToFile(filepath string) error {
	_, err := rw.WriteFileAtomic(filepath, func(w io.Writer) error {
		return c.internal.Output(w)
	})
	return err
}

func (c *Composer) ProduceBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.internal.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
