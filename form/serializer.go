package form

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Expander is the view of section state the serializer reads and restores.
type Expander interface {
	Expanded() []string // in schema order
	Expand(ids ...string)
}

type Serializer struct {
	log *zap.Logger
}

func NewSerializer(logger *zap.Logger) *Serializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{log: logger.Named("form")}
}

// Serialize reads every control. Checkboxes become bools, radio groups their
// checked value (omitted when none), everything else a string.
// LastSaved is left zero for the caller to stamp.
func (z *Serializer) Serialize(st *State, exp Expander) (*Snapshot, error) {
	snap := &Snapshot{
		Fields:     make(map[string]any, len(st.keys)),
		Signatures: make(map[string]string, len(st.order)),
	}
	for _, key := range st.keys {
		a := st.fields[key]
		switch {
		case a.IsBool():
			snap.Fields[key] = a.Bool()
		case a.Kind() == KindRadio:
			if v := a.String(); v != "" {
				snap.Fields[key] = v
			}
		default:
			snap.Fields[key] = a.String()
		}
	}
	for _, id := range st.order {
		url, err := st.pads[id].DataURL()
		if err != nil {
			return nil, err
		}
		snap.Signatures[id] = url
	}
	if exp != nil {
		snap.ExpandedSections = exp.Expanded()
	}
	return snap, nil
}

// Deserialize applies snap over the live state. Field values are set
// synchronously; signature images decode in the background and the returned
// Restore reports when they are painted.
func (z *Serializer) Deserialize(st *State, exp Expander, snap *Snapshot) *Restore {
	for key, v := range snap.Fields {
		a, ok := st.fields[key]
		if !ok {
			z.log.Debug("skipping unknown snapshot key", zap.String("key", key))
			continue
		}
		var err error
		switch tv := v.(type) {
		case bool:
			if a.IsBool() {
				err = a.SetBool(tv)
			}
		case string:
			if !a.IsBool() {
				err = a.SetString(tv)
			}
		}
		if err != nil {
			z.log.Warn("skipping snapshot value", zap.String("key", key), zap.Error(err))
		}
	}
	if exp != nil && len(snap.ExpandedSections) > 0 {
		exp.Expand(snap.ExpandedSections...)
	}

	r := &Restore{done: make(chan struct{})}
	var loads []<-chan error
	for id, url := range snap.Signatures {
		pad, ok := st.pads[id]
		if !ok || url == "" {
			continue
		}
		loads = append(loads, pad.Load(url))
	}
	go func() {
		defer close(r.done)
		var errs []error
		for _, ch := range loads {
			if err := <-ch; err != nil {
				errs = append(errs, err)
			}
		}
		r.err = errors.Join(errs...)
		if r.err != nil {
			z.log.Warn("signature restore failed", zap.Error(r.err))
		}
	}()
	return r
}

// Restore is the completion signal for signature images of one Deserialize.
type Restore struct {
	done chan struct{}
	err  error
}

func (r *Restore) Done() <-chan struct{} { return r.done }

// Err is valid after Done is closed
func (r *Restore) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Restore) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
