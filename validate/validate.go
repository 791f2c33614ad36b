// Package validate checks the live form before export.
package validate

import (
	"github.com/zeptools/clinsup/apperr"
	"github.com/zeptools/clinsup/sections"
	"github.com/zeptools/clinsup/session"
)

// Revealer is told about every section holding a missing value.
// Validation itself never changes section state.
type Revealer interface {
	Reveal(sectionID string)
}

// ExpandEligible expands the section when the review type shows it
type ExpandEligible struct {
	Sections *sections.Controller
}

func (r ExpandEligible) Reveal(sectionID string) {
	if s, ok := r.Sections.State(sectionID); ok && s == sections.Collapsed {
		_ = r.Sections.Set(sectionID, sections.Expanded)
	}
}

// NoReveal leaves sections alone
type NoReveal struct{}

func (NoReveal) Reveal(string) {}

type Validator struct {
	Revealer Revealer // nil = ExpandEligible on the session's controller
}

// Validate returns *apperr.ValidationError listing empty required fields
// and blank required signature pads, or nil.
func (v Validator) Validate(sess *session.Session) error {
	reveal := v.Revealer
	if reveal == nil {
		reveal = ExpandEligible{Sections: sess.Sections}
	}
	ve := &apperr.ValidationError{}
	for _, key := range sess.Form.Keys() {
		a, err := sess.Form.Field(key)
		if err != nil || !a.Def.Required || !a.Empty() {
			continue
		}
		ve.Fields = append(ve.Fields, key)
		reveal.Reveal(a.Section)
	}
	for _, pad := range sess.Form.Pads() {
		if !pad.Required() || pad.Signed() {
			continue
		}
		ve.Signatures = append(ve.Signatures, pad.ID())
		reveal.Reveal(pad.Section())
	}
	if ve.Empty() {
		return nil
	}
	return ve
}
