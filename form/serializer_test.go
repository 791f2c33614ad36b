package form

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpander struct{ ids []string }

func (f *fakeExpander) Expanded() []string { return slices.Clone(f.ids) }
func (f *fakeExpander) Expand(ids ...string) {
	for _, id := range ids {
		if !slices.Contains(f.ids, id) {
			f.ids = append(f.ids, id)
		}
	}
}

func TestSerialize_Kinds(t *testing.T) {
	st := newTestState(t)
	require.NoError(t, st.Set("staffName", "Bob"))
	require.NoError(t, st.SetBool("followUpRequired", true))
	require.NoError(t, st.Set("bhtedsCompletion", "lt75"))

	snap, err := NewSerializer(nil).Serialize(st, &fakeExpander{ids: []string{"ipos-section"}})
	require.NoError(t, err)

	assert.Equal(t, "Bob", snap.Fields["staffName"])
	assert.Equal(t, true, snap.Fields["followUpRequired"])
	assert.Equal(t, "lt75", snap.Fields["bhtedsCompletion"])
	_, present := snap.Fields["michicansCompletion"]
	assert.False(t, present, "unchecked radio group is omitted")
	assert.Equal(t, "", snap.Fields["clientNumber"])
	assert.Equal(t, []string{"ipos-section"}, snap.ExpandedSections)
	assert.Equal(t, "", snap.Signatures["staffSignature"])
	assert.True(t, snap.LastSaved.IsZero())
}

func TestDeserialize_RoundTripWithSignature(t *testing.T) {
	z := NewSerializer(nil)
	src := newTestState(t)
	require.NoError(t, src.Set("supervisorName", "Jane"))
	require.NoError(t, src.Set("consentsStatus", "met"))
	require.NoError(t, src.SetBool("followUpRequired", true))
	pad, _ := src.Pad("staffSignature")
	pad.Stroke(2, pt(10, 10), pt(200, 90))

	snap, err := z.Serialize(src, &fakeExpander{ids: []string{"comments-section"}})
	require.NoError(t, err)

	dst := newTestState(t)
	exp := &fakeExpander{}
	r := z.Deserialize(dst, exp, snap)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))

	again, err := z.Serialize(dst, exp)
	require.NoError(t, err)
	assert.Equal(t, snap, again)

	dpad, _ := dst.Pad("staffSignature")
	assert.True(t, dpad.Signed())
}

func TestDeserialize_SkipsUnknownAndMistyped(t *testing.T) {
	st := newTestState(t)
	snap := &Snapshot{Fields: map[string]any{
		"noSuchField":      "x",
		"staffName":        true,
		"followUpRequired": "yes",
		"bioStatus":        "bogus",
		"supervisorName":   "Jane",
	}}
	r := NewSerializer(nil).Deserialize(st, nil, snap)
	<-r.Done()
	assert.NoError(t, r.Err())
	assert.Equal(t, "Jane", st.Get("supervisorName"))
	assert.Equal(t, "", st.Get("staffName"))
	assert.Equal(t, "", st.Get("bioStatus"))
}

func TestDeserialize_BadSignatureReported(t *testing.T) {
	st := newTestState(t)
	snap := &Snapshot{Signatures: map[string]string{"staffSignature": "data:text/plain,hi"}}
	r := NewSerializer(nil).Deserialize(st, nil, snap)
	err := r.Wait(context.Background())
	assert.ErrorIs(t, err, ErrBadDataURL)
}
