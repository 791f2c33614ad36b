// Package rasterize turns one form section into an image for the document.
// Rasterizers receive a SectionView, a read-only copy of the section taken
// while the renderer holds the session.
package rasterize

import (
	"context"
	"fmt"
	"image"

	"github.com/zeptools/clinsup/form"
)

type Rasterizer interface {
	Rasterize(ctx context.Context, view *SectionView) (image.Image, error)
}

type Row struct {
	ID    string
	Label string
	Kind  form.Kind
	Value string // display text
	// Options of a radio group with the checked one marked
	Options []Choice
}

type Choice struct {
	Label   string
	Checked bool
}

type Signature struct {
	ID     string
	Label  string
	Signed bool
	Image  image.Image
}

type SectionView struct {
	ID         string
	Title      string
	Expanded   bool // collapsed sections show only their title
	Rows       []Row
	Signatures []Signature
}

// BuildView copies the current values of one section out of the live form
func BuildView(st *form.State, sectionID string, expanded bool) (*SectionView, error) {
	def := st.Schema().Section(sectionID)
	if def == nil {
		return nil, fmt.Errorf("rasterize: unknown section %q", sectionID)
	}
	v := &SectionView{ID: def.ID, Title: def.Title, Expanded: expanded}
	for i := range def.Fields {
		a, err := st.Field(def.Fields[i].ID)
		if err != nil {
			return nil, err
		}
		row := Row{ID: a.Key(), Label: a.Def.Label, Kind: a.Kind(), Value: a.Display()}
		if a.Kind() == form.KindRadio {
			cur := a.String()
			for _, o := range a.Def.Options {
				row.Options = append(row.Options, Choice{Label: o.Label, Checked: o.Value == cur})
			}
		}
		v.Rows = append(v.Rows, row)
	}
	for _, p := range def.Signatures {
		pad, err := st.Pad(p.ID)
		if err != nil {
			return nil, err
		}
		v.Signatures = append(v.Signatures, Signature{
			ID:     p.ID,
			Label:  p.Label,
			Signed: pad.Signed(),
			Image:  pad.Image(),
		})
	}
	return v, nil
}
