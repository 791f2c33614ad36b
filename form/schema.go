// Package form holds the live supervision form: the declarative schema,
// the typed field registry built from it, signature pads and the snapshot codec.
package form

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindDate     Kind = "date"
	KindNumber   Kind = "number"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio" // id is the group name
)

type Option struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type FieldDef struct {
	ID           string   `yaml:"id"`
	Label        string   `yaml:"label"`
	Kind         Kind     `yaml:"kind"`
	Required     bool     `yaml:"required"`
	DefaultToday bool     `yaml:"default_today"`
	Options      []Option `yaml:"options"`
}

// OptionLabel returns the label for value, or value itself
func (f *FieldDef) OptionLabel(value string) string {
	for _, o := range f.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

type PadDef struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Required bool   `yaml:"required"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

type SectionDef struct {
	ID         string     `yaml:"id"`
	Title      string     `yaml:"title"`
	Fixed      bool       `yaml:"fixed"` // always shown, no toggle
	Fields     []FieldDef `yaml:"fields"`
	Signatures []PadDef   `yaml:"signatures"`
}

type Schema struct {
	Title        string       `yaml:"title"`
	DisplayField string       `yaml:"display_field"`
	Sections     []SectionDef `yaml:"sections"`
}

const (
	defaultPadWidth  = 400
	defaultPadHeight = 150
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// DefaultSchema parses the embedded supervision form schema
func DefaultSchema() (*Schema, error) {
	return ParseSchema(defaultSchemaYAML)
}

func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("form: parse schema: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) check() error {
	seen := map[string]bool{}
	claim := func(id string) error {
		if id == "" {
			return fmt.Errorf("form: schema has an empty id")
		}
		if id[0] == '_' {
			return fmt.Errorf("form: id %q uses the private prefix", id)
		}
		if seen[id] {
			return fmt.Errorf("form: duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}
	for si := range s.Sections {
		sec := &s.Sections[si]
		if err := claim(sec.ID); err != nil {
			return err
		}
		for fi := range sec.Fields {
			f := &sec.Fields[fi]
			if err := claim(f.ID); err != nil {
				return err
			}
			switch f.Kind {
			case KindText, KindTextarea, KindDate, KindNumber, KindCheckbox:
			case KindSelect, KindRadio:
				if len(f.Options) == 0 {
					return fmt.Errorf("form: %s %q has no options", f.Kind, f.ID)
				}
			default:
				return fmt.Errorf("form: field %q has unknown kind %q", f.ID, f.Kind)
			}
		}
		for pi := range sec.Signatures {
			p := &sec.Signatures[pi]
			if err := claim(p.ID); err != nil {
				return err
			}
			if p.Width <= 0 {
				p.Width = defaultPadWidth
			}
			if p.Height <= 0 {
				p.Height = defaultPadHeight
			}
		}
	}
	if s.DisplayField != "" && s.Field(s.DisplayField) == nil {
		return fmt.Errorf("form: display field %q is not declared", s.DisplayField)
	}
	return nil
}

func (s *Schema) Section(id string) *SectionDef {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return &s.Sections[i]
		}
	}
	return nil
}

func (s *Schema) Field(id string) *FieldDef {
	for i := range s.Sections {
		for j := range s.Sections[i].Fields {
			if s.Sections[i].Fields[j].ID == id {
				return &s.Sections[i].Fields[j]
			}
		}
	}
	return nil
}

// ToggleSections returns the ids of collapsible sections in schema order
func (s *Schema) ToggleSections() []string {
	var ids []string
	for _, sec := range s.Sections {
		if !sec.Fixed {
			ids = append(ids, sec.ID)
		}
	}
	return ids
}

// Pads returns every signature pad declaration with its section id
func (s *Schema) Pads() []PadRef {
	var pads []PadRef
	for _, sec := range s.Sections {
		for _, p := range sec.Signatures {
			pads = append(pads, PadRef{PadDef: p, Section: sec.ID})
		}
	}
	return pads
}

type PadRef struct {
	PadDef
	Section string
}
