package drafts

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/clinsup/apperr"
	"github.com/zeptools/clinsup/db/kvdb"
	"github.com/zeptools/clinsup/db/kvdb/impls/memory"
	"github.com/zeptools/clinsup/db/kvdb/impls/sqlite"
	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/notify"
	"github.com/zeptools/clinsup/sections"
	"github.com/zeptools/clinsup/session"
	"github.com/zeptools/clinsup/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	kv    kvdb.Client
	store *store.Store
	clock *clock
	rec   *notify.Recorder
	m     *Manager
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	return newFixtureKV(t, memory.New(), opts...)
}

func newFixtureKV(t *testing.T, kv kvdb.Client, opts ...func(*Options)) *fixture {
	t.Helper()
	schema, err := form.DefaultSchema()
	require.NoError(t, err)
	f := &fixture{
		kv:    kv,
		store: store.New(kv, nil, nil),
		clock: &clock{t: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		rec:   &notify.Recorder{},
	}
	o := Options{Notifier: f.rec, Now: f.clock.Now}
	for _, fn := range opts {
		fn(&o)
	}
	f.m = NewManager(f.store, schema, o)
	return f
}

func (f *fixture) open(t *testing.T, user string) *session.Session {
	t.Helper()
	sess, err := f.m.Open(context.Background(), user)
	require.NoError(t, err)
	return sess
}

func set(t *testing.T, sess *session.Session, kv ...string) {
	t.Helper()
	for i := 0; i+1 < len(kv); i += 2 {
		require.NoError(t, sess.Form.Set(kv[i], kv[i+1]))
	}
}

func TestScenario_CreateSaveList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")

	id, err := f.m.CreateDraft(ctx, sess)
	require.NoError(t, err)
	set(t, sess, "supervisorName", "Jane", "staffName", "Bob", "reviewType", "general")
	_, err = f.m.SaveDraft(ctx, sess, false)
	require.NoError(t, err)

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "Jane", list[0].SupervisorName)
	assert.Equal(t, "Bob", list[0].StaffName)
	assert.Equal(t, "general", list[0].ReviewType)
	assert.Equal(t, "2025-03-04", list[0].Date)
	assert.Equal(t, "2025-03-04T10:00:00.000Z", list[0].LastSaved)

	assert.Contains(t, f.rec.All(), notify.Infof("Form draft saved successfully"))
}

func TestListDrafts_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")

	set(t, sess, "staffName", "A")
	a, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	set(t, sess, "staffName", "B")
	b, err := f.m.SaveAsNewDraft(ctx, sess)
	require.NoError(t, err)

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{b.ID, a.ID}, []string{list[0].ID, list[1].ID})

	// A re-saved later moves to the front
	require.NoError(t, f.m.LoadDraft(ctx, sess, a.ID))
	f.clock.Advance(time.Minute)
	_, err = f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	list, _ = f.m.ListDrafts(ctx, sess)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestListDrafts_TiesByIDDescending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")

	a, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	b, err := f.m.SaveAsNewDraft(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, a.LastSaved, b.LastSaved)

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")

	set(t, sess, "supervisorName", "Jane", "staffName", "Bob", "bioStatus", "notmet", "bhtedsComments", "late\nnotes")
	require.NoError(t, sess.Form.SetBool("followUpRequired", true))
	_, err := sess.Sections.Toggle("ipos-section")
	require.NoError(t, err)
	pad, _ := sess.Form.Pad("staffSignature")
	pad.Stroke(3, image.Pt(10, 10), image.Pt(120, 70))

	meta, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	saved, err := f.m.Snapshot(ctx, sess, meta.ID)
	require.NoError(t, err)

	_, err = f.m.CreateDraft(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "", sess.Form.Get("staffName"))

	require.NoError(t, f.m.LoadDraft(ctx, sess, meta.ID))
	assert.Equal(t, meta.ID, sess.CurrentID)

	live, err := form.NewSerializer(nil).Serialize(sess.Form, sess.Sections)
	require.NoError(t, err)
	live.LastSaved = saved.LastSaved
	assert.Empty(t, cmp.Diff(saved, live))
	assert.False(t, f.m.Dirty(sess))
}

func TestLoadDraft_NotFound(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "Jane")
	err := f.m.LoadDraft(context.Background(), sess, "form_1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLoadDraft_DirtyAsksConfirmer(t *testing.T) {
	ctx := context.Background()
	var asked int
	answer := false
	f := newFixture(t, func(o *Options) {
		o.Confirmer = ConfirmFunc(func(context.Context, *session.Session) bool {
			asked++
			return answer
		})
	})
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Saved")
	saved, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	_, err = f.m.CreateDraft(ctx, sess)
	require.NoError(t, err)
	fresh := sess.CurrentID

	// clean form: no prompt
	require.NoError(t, f.m.LoadDraft(ctx, sess, saved.ID))
	assert.Equal(t, 0, asked)

	set(t, sess, "staffName", "Edited")
	err = f.m.LoadDraft(ctx, sess, saved.ID)
	assert.ErrorIs(t, err, apperr.ErrCanceled)
	assert.Equal(t, 1, asked)
	assert.Equal(t, "Edited", sess.Form.Get("staffName"), "declining leaves the live form untouched")
	assert.Equal(t, saved.ID, sess.CurrentID)
	assert.NotEqual(t, fresh, sess.CurrentID)

	answer = true
	require.NoError(t, f.m.LoadDraft(ctx, sess, saved.ID))
	assert.Equal(t, "Saved", sess.Form.Get("staffName"))
}

func TestLoadDraft_CanceledWhileRestoringTargetsLoadedDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Alice")
	a, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	set(t, sess, "staffName", "Bob")
	b, err := f.m.SaveAsNewDraft(ctx, sess)
	require.NoError(t, err)
	require.NoError(t, f.m.LoadDraft(ctx, sess, a.ID))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = f.m.LoadDraft(canceled, sess, b.ID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "Bob", sess.Form.Get("staffName"))
	assert.Equal(t, b.ID, sess.CurrentID)

	set(t, sess, "staffName", "Bobby")
	_, err = f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	snapA, err := f.m.Snapshot(ctx, sess, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", snapA.Fields["staffName"])
	snapB, err := f.m.Snapshot(ctx, sess, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bobby", snapB.Fields["staffName"])
}

func TestDeleteDraft_CurrentStartsFresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Bob")
	meta, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	require.NoError(t, f.m.DeleteDraft(ctx, sess, meta.ID))

	assert.NotEmpty(t, sess.CurrentID)
	assert.NotEqual(t, meta.ID, sess.CurrentID)
	assert.Equal(t, "", sess.Form.Get("staffName"))
	stored, found, err := sess.Scope.Get(ctx, store.KeyCurrentFormID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sess.CurrentID, stored)

	_, err = f.m.Snapshot(ctx, sess, meta.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	list, _ := f.m.ListDrafts(ctx, sess)
	assert.Empty(t, list)
}

func TestDeleteDraft_OtherKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	a, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	b, err := f.m.SaveAsNewDraft(ctx, sess)
	require.NoError(t, err)

	require.NoError(t, f.m.DeleteDraft(ctx, sess, a.ID))
	assert.Equal(t, b.ID, sess.CurrentID)
	list, _ := f.m.ListDrafts(ctx, sess)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	assert.ErrorIs(t, f.m.DeleteDraft(ctx, sess, a.ID), apperr.ErrNotFound)
}

func TestDuplicateDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "supervisorName", "Jane", "staffName", "Bob", "clientNumber", "C-7")
	orig, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	before, err := f.m.Snapshot(ctx, sess, orig.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	dup, err := f.m.DuplicateDraft(ctx, sess, orig.ID)
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID, dup.ID)
	assert.Equal(t, dup.ID, sess.CurrentID)
	assert.Equal(t, "Bob (Copy)", dup.StaffName)
	assert.Equal(t, "Bob (Copy)", sess.Form.Get("staffName"))

	copied, err := f.m.Snapshot(ctx, sess, dup.ID)
	require.NoError(t, err)
	for k, v := range before.Fields {
		if k == "staffName" {
			continue
		}
		assert.Equal(t, v, copied.Fields[k], k)
	}

	after, err := f.m.Snapshot(ctx, sess, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "original untouched")

	_, err = f.m.DuplicateDraft(ctx, sess, "form_0")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOpen_ResumesCurrentDraftAndIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	jane := f.open(t, "Jane")
	set(t, jane, "staffName", "Bob", "reviewType", "client")
	saved, err := f.m.SaveDraft(ctx, jane, true)
	require.NoError(t, err)

	bob, err := f.m.SwitchUser(ctx, "Bob")
	require.NoError(t, err)
	list, err := f.m.ListDrafts(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)

	again := f.open(t, "Jane")
	assert.Equal(t, saved.ID, again.CurrentID)
	assert.Equal(t, "Bob", again.Form.Get("staffName"))
	assert.Equal(t, sections.Client, again.Sections.ReviewType())
	assert.Equal(t, []string{sections.CaseReview, sections.Comments}, again.Sections.Eligible())

	users, err := f.store.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane", "Bob"}, users)
}

func TestClearForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Bob")
	meta, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	require.NoError(t, f.m.ClearForm(ctx, sess))
	assert.NotEqual(t, meta.ID, sess.CurrentID)
	assert.Equal(t, "2025-03-04", sess.Form.Get("supervisionDate"))
	assert.Equal(t, "2025-03-04", sess.Form.Get("supervisorSignatureDate"))
	_, err = f.m.Snapshot(ctx, sess, meta.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	list, _ := f.m.ListDrafts(ctx, sess)
	assert.Empty(t, list)
}

func TestNextID_StrictlyIncreasing(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	prev := int64(0)
	for i := 0; i < 50; i++ {
		id := f.m.nextID()
		require.False(t, seen[id])
		seen[id] = true
		ms := idMillis(id)
		require.Greater(t, ms, prev)
		prev = ms
	}
}

func TestOpen_SeedsIDsFromStoredList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	first, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	// a second process whose clock lags behind
	g := newFixtureKV(t, f.kv)
	g.clock.t = f.clock.t.Add(-time.Hour)
	sess2 := g.open(t, "Jane")
	id, err := g.m.CreateDraft(ctx, sess2)
	require.NoError(t, err)
	assert.Greater(t, idMillis(id), idMillis(first.ID))
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Bob")
	a, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	// orphan snapshot and a dangling list entry
	require.NoError(t, sess.Scope.Set(ctx, store.FormDataKey("form_99"), `{"staffName":"Orphan","_lastSaved":"2025-01-01T00:00:00.000Z"}`))
	require.NoError(t, sess.Scope.Set(ctx, store.KeyFormList,
		`[{"id":"`+a.ID+`","staffName":"Bob","lastSaved":"`+a.LastSaved+`"},{"id":"form_1","staffName":"Gone"}]`))

	added, removed, err := f.m.Reconcile(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, "form_99", list[1].ID)
	assert.Equal(t, "Orphan", list[1].StaffName)
	assert.Equal(t, "Unknown Supervisor", list[1].SupervisorName)
}

func TestReconcile_SQLiteNonASCIIUser(t *testing.T) {
	ctx := context.Background()
	kv := &sqlite.Client{Conf: &kvdb.Conf{Type: "sqlite", Path: ":memory:"}}
	require.NoError(t, kv.Init())
	t.Cleanup(func() { _ = kv.Close() })
	f := newFixtureKV(t, kv)
	sess := f.open(t, "José")
	set(t, sess, "staffName", "Bob")
	meta, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	added, removed, err := f.m.Reconcile(ctx, sess)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, removed)

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, meta.ID, list[0].ID)
}

func TestSaveDraft_InvalidTextNeverReachesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Bob")
	assert.ErrorIs(t, sess.Form.Set("staffName", "Bob\xff"), form.ErrInvalidText)

	meta, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	assert.Equal(t, "Bob", meta.StaffName)
}

func TestSaveDraft_CollapsesDuplicateListEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.open(t, "Jane")
	set(t, sess, "staffName", "Bob")
	meta, err := f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)
	require.NoError(t, sess.Scope.Set(ctx, store.KeyFormList,
		`[{"id":"`+meta.ID+`","staffName":"Old"},{"id":"form_1","staffName":"Other"},{"id":"`+meta.ID+`","staffName":"Older"}]`))

	set(t, sess, "staffName", "Robert")
	_, err = f.m.SaveDraft(ctx, sess, true)
	require.NoError(t, err)

	list, err := f.m.ListDrafts(ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 2)
	var mine []Meta
	for _, m := range list {
		if m.ID == meta.ID {
			mine = append(mine, m)
		}
	}
	require.Len(t, mine, 1)
	assert.Equal(t, "Robert", mine[0].StaffName)
}

type brokenKV struct {
	kvdb.Client
	fail bool
}

func (b *brokenKV) Set(ctx context.Context, key, value string, exp time.Duration) error {
	if b.fail {
		return errors.New("quota exceeded")
	}
	return b.Client.Set(ctx, key, value, exp)
}

func TestSaveDraft_StorageFailureNotifies(t *testing.T) {
	kv := &brokenKV{Client: memory.New()}
	f := newFixtureKV(t, kv)
	sess := f.open(t, "Jane")
	kv.fail = true

	_, err := f.m.SaveDraft(context.Background(), sess, false)
	var sf *apperr.StorageFailure
	require.ErrorAs(t, err, &sf)
	all := f.rec.All()
	require.NotEmpty(t, all)
	assert.Equal(t, notify.Error, all[len(all)-1].Level)
}
