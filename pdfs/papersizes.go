package pdfs

import (
	"fmt"
	"strings"
)

type PaperSize struct {
	Name   string
	Width  float64 // in `pt` (1" = 72pts)
	Height float64 // in `pt`
}

var (
	LetterSize = PaperSize{Name: "Letter", Width: 612, Height: 792}         // 8.5" x 11"
	A4Size     = PaperSize{Name: "A4", Width: 595.27559, Height: 841.88976} // 210mm x 297mm
)

// LookupPaperSize resolves a configured paper name, case-insensitive
func LookupPaperSize(name string) (PaperSize, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "a4":
		return A4Size, nil
	case "letter":
		return LetterSize, nil
	}
	return PaperSize{}, fmt.Errorf("pdfs: unknown paper size %q", name)
}
