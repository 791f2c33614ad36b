package render

import (
	"github.com/zeptools/clinsup/pdfs"
)

var (
	primary = pdfs.RGB{R: 112, G: 48, B: 160}
	black   = pdfs.RGB{}
	gray    = pdfs.RGB{R: 150, G: 150, B: 150}
	red     = pdfs.RGB{R: 255}
)

const font = "Helvetica"

// Layout is a cursor over a Composer. Y is the next baseline in pt from the top.
type Layout struct {
	Doc    pdfs.Composer
	Margin float64
	Y      float64
}

func NewLayout(doc pdfs.Composer, margin float64) *Layout {
	if doc.PageCount() == 0 {
		doc.AppendBlankPage()
	}
	return &Layout{Doc: doc, Margin: margin, Y: margin}
}

func (l *Layout) PageWidth() float64    { return l.Doc.PaperSize().Width }
func (l *Layout) PageHeight() float64   { return l.Doc.PaperSize().Height }
func (l *Layout) ContentWidth() float64 { return l.PageWidth() - 2*l.Margin }

// Bottom is the lowest y content may reach on a page
func (l *Layout) Bottom() float64 { return l.PageHeight() - l.Margin }

// Remaining is the vertical space left on the current page
func (l *Layout) Remaining() float64 { return l.Bottom() - l.Y }

// Ensure starts a new page when a block of height h does not fit below Y.
// It reports whether a page was added.
func (l *Layout) Ensure(h float64) bool {
	if l.Y+h > l.Bottom() {
		l.NewPage()
		return true
	}
	return false
}

func (l *Layout) NewPage() {
	l.Doc.AppendBlankPage()
	l.Y = l.Margin
}

func (l *Layout) heading(text string) {
	l.Doc.SetFont(font, "", 14)
	l.Doc.SetTextColor(primary)
	l.Doc.Text(l.Margin, l.Y, text)
	l.Y += 25
	l.body()
}

func (l *Layout) body() {
	l.Doc.SetFont(font, "", 12)
	l.Doc.SetTextColor(black)
	l.Doc.SetDrawColor(gray)
}

// header draws the document title and moves Y below it
func (l *Layout) header(title string) {
	l.Doc.SetFont(font, "", 16)
	l.Doc.SetTextColor(primary)
	l.Doc.Text(l.Margin, l.Margin, title)
	l.Y = l.Margin + 30
}

// footers stamps every page once the page count is final
func (l *Layout) footers(caption string) error {
	n := l.Doc.PageCount()
	y := l.PageHeight() - 20
	for i := 0; i < n; i++ {
		if err := l.Doc.SelectPage(i); err != nil {
			return err
		}
		l.Doc.SetFont(font, "", 10)
		l.Doc.SetTextColor(gray)
		l.Doc.Text(l.Margin, y, caption)
		l.Doc.TextRight(l.PageWidth()-l.Margin-60, y, pageLabel(i+1, n))
	}
	return nil
}
