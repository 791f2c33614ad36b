package form

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"unicode/utf8"
)

var (
	ErrUnknownField = errors.New("form: unknown field")
	ErrWrongKind    = errors.New("form: wrong value kind")
	ErrBadOption    = errors.New("form: value is not an option")
	ErrInvalidText  = errors.New("form: text is not valid UTF-8")
)

// Accessor is the typed getter/setter for one registry key
// (a field id, or a radio group name).
type Accessor struct {
	Def     *FieldDef
	Section string

	mu  *sync.RWMutex
	str string
	on  bool
}

func (a *Accessor) Key() string { return a.Def.ID }
func (a *Accessor) Kind() Kind  { return a.Def.Kind }
func (a *Accessor) IsBool() bool {
	return a.Def.Kind == KindCheckbox
}

func (a *Accessor) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.str
}

func (a *Accessor) Bool() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.on
}

func (a *Accessor) SetString(v string) error {
	if a.IsBool() {
		return fmt.Errorf("%w: %q is a checkbox", ErrWrongKind, a.Def.ID)
	}
	// snapshots are JSON and cannot carry invalid UTF-8
	if !utf8.ValidString(v) {
		return fmt.Errorf("%w: %q", ErrInvalidText, a.Def.ID)
	}
	if (a.Def.Kind == KindRadio || a.Def.Kind == KindSelect) && v != "" && !a.hasOption(v) {
		return fmt.Errorf("%w: %q for %q", ErrBadOption, v, a.Def.ID)
	}
	a.mu.Lock()
	a.str = v
	a.mu.Unlock()
	return nil
}

func (a *Accessor) SetBool(v bool) error {
	if !a.IsBool() {
		return fmt.Errorf("%w: %q is not a checkbox", ErrWrongKind, a.Def.ID)
	}
	a.mu.Lock()
	a.on = v
	a.mu.Unlock()
	return nil
}

// Empty reports whether the control holds no user value
func (a *Accessor) Empty() bool {
	if a.IsBool() {
		return !a.Bool()
	}
	return a.String() == ""
}

// Display renders the value for a human reader
func (a *Accessor) Display() string {
	switch a.Def.Kind {
	case KindCheckbox:
		if a.Bool() {
			return "Yes"
		}
		return "No"
	case KindRadio, KindSelect:
		if v := a.String(); v != "" {
			return a.Def.OptionLabel(v)
		}
		return ""
	default:
		return a.String()
	}
}

func (a *Accessor) hasOption(v string) bool {
	return slices.ContainsFunc(a.Def.Options, func(o Option) bool { return o.Value == v })
}

func (a *Accessor) reset(today string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.on = false
	a.str = ""
	switch {
	case a.Def.Kind == KindDate && a.Def.DefaultToday:
		a.str = today
	case a.Def.Kind == KindSelect:
		// a reset <select> falls back to its first option
		a.str = a.Def.Options[0].Value
	}
}

func (a *Accessor) clear() {
	a.mu.Lock()
	a.on = false
	a.str = ""
	a.mu.Unlock()
}

// State is the live form: one accessor per registry key plus signature pads.
// Built once from a Schema; keys never change afterwards.
type State struct {
	schema *Schema
	mu     sync.RWMutex // guards values, shared by all accessors
	keys   []string
	fields map[string]*Accessor
	pads   map[string]*SignaturePad
	order  []string // pad ids in schema order
}

func NewState(schema *Schema) *State {
	st := &State{
		schema: schema,
		fields: map[string]*Accessor{},
		pads:   map[string]*SignaturePad{},
	}
	for si := range schema.Sections {
		sec := &schema.Sections[si]
		for fi := range sec.Fields {
			def := &sec.Fields[fi]
			st.fields[def.ID] = &Accessor{Def: def, Section: sec.ID, mu: &st.mu}
			st.keys = append(st.keys, def.ID)
		}
	}
	for _, p := range schema.Pads() {
		st.pads[p.ID] = NewSignaturePad(p)
		st.order = append(st.order, p.ID)
	}
	return st
}

func (st *State) Schema() *Schema { return st.schema }

// Keys returns the registry keys in schema order
func (st *State) Keys() []string { return slices.Clone(st.keys) }

func (st *State) Field(key string) (*Accessor, error) {
	a, ok := st.fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return a, nil
}

// Get returns the field's string value; "" for unknown keys and checkboxes
func (st *State) Get(key string) string {
	if a, ok := st.fields[key]; ok && !a.IsBool() {
		return a.String()
	}
	return ""
}

func (st *State) Set(key, value string) error {
	a, err := st.Field(key)
	if err != nil {
		return err
	}
	return a.SetString(value)
}

func (st *State) SetBool(key string, value bool) error {
	a, err := st.Field(key)
	if err != nil {
		return err
	}
	return a.SetBool(value)
}

func (st *State) Pad(id string) (*SignaturePad, error) {
	p, ok := st.pads[id]
	if !ok {
		return nil, fmt.Errorf("%w: signature %q", ErrUnknownField, id)
	}
	return p, nil
}

// Pads returns the signature pads in schema order
func (st *State) Pads() []*SignaturePad {
	out := make([]*SignaturePad, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.pads[id])
	}
	return out
}

// Reset puts every control back to its default: empty, first option for selects,
// today for dates flagged default_today. Pads are wiped.
func (st *State) Reset(today string) {
	for _, a := range st.fields {
		a.reset(today)
	}
	for _, p := range st.pads {
		p.Clear()
	}
}

// Clear empties every control without applying defaults
func (st *State) Clear() {
	for _, a := range st.fields {
		a.clear()
	}
	for _, p := range st.pads {
		p.Clear()
	}
}
