package drafts

import (
	"context"
	"image"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/clinsup/schedjobs"
	"github.com/zeptools/clinsup/sections"
)

func TestAutoSaver_CoalescesPerStream(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")

	deb := schedjobs.NewDebouncer("autosave", nil)
	require.NoError(t, deb.Start())
	var saves atomic.Int32
	deb.OnJobFinished = func(job *schedjobs.DebouncedJob, err error) {
		assert.NoError(t, err)
		saves.Add(1)
	}
	a := NewAutoSaver(ctx, f.m, sess, deb)

	for _, s := range []string{"B", "Bo", "Bob"} {
		require.NoError(t, a.Edit("staffName", s))
	}
	require.NoError(t, a.Edit("additionalComments", "first pass"))
	require.NoError(t, a.Stroke("staffSignature", 2, image.Pt(3, 3), image.Pt(40, 30)))
	require.NoError(t, a.Stroke("staffSignature", 2, image.Pt(40, 30), image.Pt(90, 10)))
	assert.Equal(t, 3, deb.Pending())

	deb.Stop()
	assert.Equal(t, int32(3), saves.Load())

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", list[0].StaffName)

	snap, err := f.m.Snapshot(ctx, sess, sess.CurrentID)
	require.NoError(t, err)
	assert.Equal(t, "first pass", snap.String("additionalComments"))
	assert.NotEmpty(t, snap.Signatures["staffSignature"])
	assert.False(t, f.m.Dirty(sess))
}

func TestAutoSaver_ReviewTypeAppliesPolicy(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "Jane")
	deb := schedjobs.NewDebouncer("autosave", nil)
	require.NoError(t, deb.Start())
	defer deb.Stop()
	a := NewAutoSaver(context.Background(), f.m, sess, deb)

	require.NoError(t, a.Edit("reviewType", "client"))
	assert.Equal(t, sections.Client, sess.Sections.ReviewType())
	assert.Error(t, a.Edit("reviewType", "neither"))
	assert.Error(t, a.Edit("noSuchField", "x"))
	assert.Error(t, a.Toggle("basic-info"))
}
