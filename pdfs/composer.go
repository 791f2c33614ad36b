// Package pdfs declares the paginated document surface the renderer draws on.
// Coordinates are in pt from the top-left corner; text y is the baseline.
package pdfs

import (
	"errors"
	"image"
	"io"
)

var ErrPageOutOfRange = errors.New("pdfs: page index out of range")

type RGB struct {
	R, G, B uint8
}

// Composer is a buffered PDF document builder with page navigation, so that
// earlier pages can be revisited once the page count is known.
type Composer interface {
	PaperSize() PaperSize
	Orientation() string

	PageCount() int
	GetCurrentPageIndex() int // 0-based
	SelectPage(index int) error
	AppendBlankPage()

	SetFont(family string, style string, size float64)
	SetTextColor(c RGB)
	SetDrawColor(c RGB)
	Text(x float64, y float64, text string)
	// TextRight draws text so that it ends at x
	TextRight(x float64, y float64, text string)
	// SplitText breaks text into lines no wider than width in the current font
	SplitText(text string, width float64) []string
	Line(x1, y1, x2, y2 float64)
	Rect(x, y, w, h float64)
	Image(img image.Image, x, y, w, h float64) error

	WriteTo(w io.Writer) (int64, error)
	WriteToFile(filepath string) error
	ProduceBytes() ([]byte, error)
}
