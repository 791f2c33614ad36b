// Package drafts owns the draft lifecycle of a user session:
// create, load, save, duplicate, delete and list, persisted through store.
package drafts

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/zeptools/clinsup/apperr"
	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/notify"
	"github.com/zeptools/clinsup/session"
	"github.com/zeptools/clinsup/store"
)

// CopyMarker is appended to the display field of a duplicated draft
const CopyMarker = " (Copy)"

// Confirmer is asked before unsaved changes are discarded
type Confirmer interface {
	ConfirmDiscard(ctx context.Context, sess *session.Session) bool
}

type ConfirmFunc func(ctx context.Context, sess *session.Session) bool

func (f ConfirmFunc) ConfirmDiscard(ctx context.Context, sess *session.Session) bool {
	return f(ctx, sess)
}

var (
	AlwaysDiscard = ConfirmFunc(func(context.Context, *session.Session) bool { return true })
	NeverDiscard  = ConfirmFunc(func(context.Context, *session.Session) bool { return false })
)

type Options struct {
	Confirmer Confirmer       // nil = AlwaysDiscard
	Notifier  notify.Notifier // nil = notify.Nop
	Logger    *zap.Logger
	Now       func() time.Time
}

type Manager struct {
	store      *store.Store
	schema     *form.Schema
	serializer *form.Serializer
	confirm    Confirmer
	notifier   notify.Notifier
	log        *zap.Logger
	now        func() time.Time

	idMu   sync.Mutex
	lastID int64
}

func NewManager(st *store.Store, schema *form.Schema, opts Options) *Manager {
	m := &Manager{
		store:    st,
		schema:   schema,
		confirm:  opts.Confirmer,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if m.confirm == nil {
		m.confirm = AlwaysDiscard
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.Named("drafts")
	if m.now == nil {
		m.now = time.Now
	}
	m.serializer = form.NewSerializer(m.log)
	return m
}

func (m *Manager) Schema() *form.Schema { return m.schema }

// Notify forwards n to the manager's notifier
func (m *Manager) Notify(n notify.Notification) { m.notifier.Notify(n) }

// Open registers user and returns its session with the current draft loaded,
// or a fresh draft when there is none.
func (m *Manager) Open(ctx context.Context, user string) (*session.Session, error) {
	if err := m.store.RegisterUser(ctx, user); err != nil {
		return nil, err
	}
	scope, err := m.store.Scoped(user)
	if err != nil {
		return nil, err
	}
	sess := session.New(scope.User(), scope, m.schema)
	sess.Lock()
	defer sess.Unlock()

	list, err := m.readList(ctx, sess)
	if err != nil {
		return nil, err
	}
	for _, meta := range list {
		m.observeID(meta.ID)
	}

	current, found, err := scope.Get(ctx, store.KeyCurrentFormID)
	if err != nil {
		return nil, err
	}
	if found && current != "" {
		m.observeID(current)
		snap, ok, err := m.readSnapshot(ctx, sess, current)
		if err != nil {
			return nil, err
		}
		if ok {
			if err = m.hydrate(ctx, sess, current, snap); err != nil {
				return nil, err
			}
			m.log.Info("session opened", zap.String("user", sess.User), zap.String("draft", current))
			m.notifier.Notify(notify.Infof("Form draft loaded"))
			return sess, nil
		}
		// current id without a snapshot: keep using it, like a fresh page load
		m.resetLive(sess, current)
		m.log.Info("session opened", zap.String("user", sess.User), zap.String("draft", current))
		return sess, nil
	}
	if _, err = m.createLocked(ctx, sess); err != nil {
		return nil, err
	}
	m.log.Info("session opened", zap.String("user", sess.User), zap.String("draft", sess.CurrentID))
	return sess, nil
}

// SwitchUser opens another user's partition. Nothing of the previous session
// is flushed or removed.
func (m *Manager) SwitchUser(ctx context.Context, user string) (*session.Session, error) {
	return m.Open(ctx, user)
}

// CreateDraft allocates a new id, resets the live form and makes it current
func (m *Manager) CreateDraft(ctx context.Context, sess *session.Session) (string, error) {
	sess.Lock()
	defer sess.Unlock()
	return m.createLocked(ctx, sess)
}

func (m *Manager) createLocked(ctx context.Context, sess *session.Session) (string, error) {
	id := m.nextID()
	m.resetLive(sess, id)
	if err := sess.Scope.Set(ctx, store.KeyCurrentFormID, id); err != nil {
		return "", err
	}
	m.log.Debug("draft created", zap.String("user", sess.User), zap.String("draft", id))
	return id, nil
}

func (m *Manager) resetLive(sess *session.Session, id string) {
	sess.Form.Reset(m.now().Format(DateLayout))
	sess.Sections.Reset()
	sess.ApplyReviewType()
	sess.CurrentID = id
	sess.Baseline, _ = m.serializer.Serialize(sess.Form, sess.Sections)
}

// LoadDraft replaces the live form with draft id. Signature images are
// painted before it returns.
func (m *Manager) LoadDraft(ctx context.Context, sess *session.Session, id string) error {
	sess.Lock()
	defer sess.Unlock()
	snap, found, err := m.readSnapshot(ctx, sess, id)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("draft", id)
	}
	if err = m.confirmDiscard(ctx, sess); err != nil {
		return err
	}
	if err = m.hydrate(ctx, sess, id, snap); err != nil {
		return err
	}
	m.notifier.Notify(notify.Infof("Form draft loaded"))
	return nil
}

func (m *Manager) hydrate(ctx context.Context, sess *session.Session, id string, snap *form.Snapshot) error {
	sess.Form.Clear()
	sess.Sections.Reset()
	restore := m.serializer.Deserialize(sess.Form, sess.Sections, snap)
	sess.ApplyReviewType()
	// the live form now holds id's fields, so saves must target id
	sess.CurrentID = id
	sess.Baseline = snap
	if err := restore.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		m.notifier.Notify(notify.Errorf("Could not restore signature: %v", err))
	}
	baseline, err := m.serializer.Serialize(sess.Form, sess.Sections)
	if err != nil {
		return err
	}
	baseline.LastSaved = snap.LastSaved
	sess.Baseline = baseline
	return sess.Scope.Set(ctx, store.KeyCurrentFormID, id)
}

// Dirty reports whether the live form differs from its baseline
func (m *Manager) Dirty(sess *session.Session) bool {
	sess.Lock()
	defer sess.Unlock()
	return m.dirtyLocked(sess)
}

var snapshotCmp = []cmp.Option{
	cmpopts.IgnoreFields(form.Snapshot{}, "LastSaved"),
	cmpopts.EquateEmpty(),
}

func (m *Manager) dirtyLocked(sess *session.Session) bool {
	live, err := m.serializer.Serialize(sess.Form, sess.Sections)
	if err != nil {
		return true
	}
	if sess.Baseline == nil {
		return true
	}
	return !cmp.Equal(live, sess.Baseline, snapshotCmp...)
}

func (m *Manager) confirmDiscard(ctx context.Context, sess *session.Session) error {
	if !m.dirtyLocked(sess) {
		return nil
	}
	if m.confirm.ConfirmDiscard(ctx, sess) {
		return nil
	}
	return apperr.ErrCanceled
}

// SaveDraft writes the live form under the current id and upserts its list entry
func (m *Manager) SaveDraft(ctx context.Context, sess *session.Session, silent bool) (Meta, error) {
	sess.Lock()
	defer sess.Unlock()
	return m.saveLocked(ctx, sess, sess.CurrentID, silent)
}

// SaveAsNewDraft saves the live form under a fresh id and makes it current.
// The previous draft stays as it was last saved.
func (m *Manager) SaveAsNewDraft(ctx context.Context, sess *session.Session) (Meta, error) {
	sess.Lock()
	defer sess.Unlock()
	return m.saveLocked(ctx, sess, m.nextID(), false)
}

func (m *Manager) saveLocked(ctx context.Context, sess *session.Session, id string, silent bool) (Meta, error) {
	snap, err := m.serializer.Serialize(sess.Form, sess.Sections)
	if err != nil {
		return Meta{}, err
	}
	snap.LastSaved = m.now().UTC().Truncate(time.Millisecond)
	meta, err := m.persist(ctx, sess, id, snap)
	if err != nil {
		if !silent {
			m.notifier.Notify(notify.FromError(err))
		}
		return Meta{}, err
	}
	if err = sess.Scope.Set(ctx, store.KeyCurrentFormID, id); err != nil {
		return Meta{}, err
	}
	sess.CurrentID = id
	sess.Baseline = snap
	if !silent {
		m.notifier.Notify(notify.Infof("Form draft saved successfully"))
	}
	m.log.Debug("draft saved", zap.String("user", sess.User), zap.String("draft", id), zap.Bool("silent", silent))
	return meta, nil
}

// persist writes the snapshot and its recomputed list entry
func (m *Manager) persist(ctx context.Context, sess *session.Session, id string, snap *form.Snapshot) (Meta, error) {
	raw, err := form.EncodeSnapshot(snap)
	if err != nil {
		return Meta{}, err
	}
	if err = sess.Scope.Set(ctx, store.FormDataKey(id), raw); err != nil {
		return Meta{}, err
	}
	list, err := m.readList(ctx, sess)
	if err != nil {
		return Meta{}, err
	}
	meta := MetaOf(id, snap)
	if err = m.writeList(ctx, sess, upsertMeta(list, meta)); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// DuplicateDraft copies draft id under a new id, marks the display field,
// persists the copy and loads it.
func (m *Manager) DuplicateDraft(ctx context.Context, sess *session.Session, id string) (Meta, error) {
	sess.Lock()
	defer sess.Unlock()
	src, found, err := m.readSnapshot(ctx, sess, id)
	if err != nil {
		return Meta{}, err
	}
	if !found {
		return Meta{}, apperr.NotFound("draft", id)
	}
	if err = m.confirmDiscard(ctx, sess); err != nil {
		return Meta{}, err
	}
	dup := src.Clone()
	if dup.Fields == nil {
		dup.Fields = map[string]any{}
	}
	if f := m.schema.DisplayField; f != "" {
		dup.Fields[f] = dup.String(f) + CopyMarker
	}
	dup.LastSaved = m.now().UTC().Truncate(time.Millisecond)
	newID := m.nextID()
	meta, err := m.persist(ctx, sess, newID, dup)
	if err != nil {
		return Meta{}, err
	}
	if err = m.hydrate(ctx, sess, newID, dup); err != nil {
		return Meta{}, err
	}
	m.notifier.Notify(notify.Infof("Draft duplicated"))
	return meta, nil
}

// DeleteDraft removes the snapshot and list entry of id. Deleting the current
// draft starts a fresh one so a current draft always exists.
func (m *Manager) DeleteDraft(ctx context.Context, sess *session.Session, id string) error {
	sess.Lock()
	defer sess.Unlock()
	_, snapFound, err := sess.Scope.Get(ctx, store.FormDataKey(id))
	if err != nil {
		return err
	}
	list, err := m.readList(ctx, sess)
	if err != nil {
		return err
	}
	list, listed := removeMeta(list, id)
	if !snapFound && !listed {
		return apperr.NotFound("draft", id)
	}
	if snapFound {
		if err = sess.Scope.Remove(ctx, store.FormDataKey(id)); err != nil {
			return err
		}
	}
	if listed {
		if err = m.writeList(ctx, sess, list); err != nil {
			return err
		}
	}
	if id == sess.CurrentID {
		if _, err = m.createLocked(ctx, sess); err != nil {
			return err
		}
	}
	m.notifier.Notify(notify.Infof("Draft deleted"))
	return nil
}

// ClearForm discards the current draft entirely and starts a fresh one
func (m *Manager) ClearForm(ctx context.Context, sess *session.Session) error {
	sess.Lock()
	defer sess.Unlock()
	id := sess.CurrentID
	if err := sess.Scope.Remove(ctx, store.FormDataKey(id)); err != nil {
		return err
	}
	list, err := m.readList(ctx, sess)
	if err != nil {
		return err
	}
	if list, removed := removeMeta(list, id); removed {
		if err = m.writeList(ctx, sess, list); err != nil {
			return err
		}
	}
	if _, err = m.createLocked(ctx, sess); err != nil {
		return err
	}
	m.notifier.Notify(notify.Infof("Form has been cleared"))
	return nil
}

// ListDrafts returns the user's list entries, most recently saved first
func (m *Manager) ListDrafts(ctx context.Context, sess *session.Session) ([]Meta, error) {
	sess.Lock()
	defer sess.Unlock()
	list, err := m.readList(ctx, sess)
	if err != nil {
		return nil, err
	}
	sortMetas(list)
	return list, nil
}

// Snapshot reads a stored draft without touching the live form
func (m *Manager) Snapshot(ctx context.Context, sess *session.Session, id string) (*form.Snapshot, error) {
	sess.Lock()
	defer sess.Unlock()
	snap, found, err := m.readSnapshot(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("draft", id)
	}
	return snap, nil
}

// Reconcile rebuilds the Draft List from the stored snapshots: entries without
// a snapshot are dropped and snapshots without an entry are listed.
func (m *Manager) Reconcile(ctx context.Context, sess *session.Session) (added, removed int, err error) {
	sess.Lock()
	defer sess.Unlock()
	keys, err := sess.Scope.Keys(ctx, store.KeyFormDataPfx)
	if err != nil {
		return 0, 0, err
	}
	list, err := m.readList(ctx, sess)
	if err != nil {
		return 0, 0, err
	}
	stored := map[string]bool{}
	for _, k := range keys {
		stored[k[len(store.KeyFormDataPfx):]] = true
	}
	var kept []Meta
	listed := map[string]bool{}
	for _, meta := range list {
		if stored[meta.ID] && !listed[meta.ID] {
			kept = append(kept, meta)
			listed[meta.ID] = true
		} else {
			removed++
		}
	}
	for _, k := range keys {
		id := k[len(store.KeyFormDataPfx):]
		if listed[id] {
			continue
		}
		snap, _, err := m.readSnapshot(ctx, sess, id)
		if err != nil {
			var sf *apperr.StorageFailure
			if errors.As(err, &sf) && sf.Op == "decode" {
				m.log.Warn("unreadable snapshot skipped", zap.String("draft", id), zap.Error(err))
				continue
			}
			return added, removed, err
		}
		kept = append(kept, MetaOf(id, snap))
		added++
	}
	if added > 0 || removed > 0 {
		if err = m.writeList(ctx, sess, kept); err != nil {
			return added, removed, err
		}
	}
	return added, removed, nil
}

func (m *Manager) readSnapshot(ctx context.Context, sess *session.Session, id string) (*form.Snapshot, bool, error) {
	key := store.FormDataKey(id)
	raw, found, err := sess.Scope.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	snap, err := form.DecodeSnapshot(raw)
	if err != nil {
		return nil, false, &apperr.StorageFailure{Op: "decode", Key: key, Err: err}
	}
	return snap, true, nil
}

func (m *Manager) readList(ctx context.Context, sess *session.Session) ([]Meta, error) {
	raw, found, err := sess.Scope.Get(ctx, store.KeyFormList)
	if err != nil || !found {
		return nil, err
	}
	var list []Meta
	if err = json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, &apperr.StorageFailure{Op: "decode", Key: store.KeyFormList, Err: err}
	}
	return list, nil
}

func (m *Manager) writeList(ctx context.Context, sess *session.Session, list []Meta) error {
	if list == nil {
		list = []Meta{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return sess.Scope.Set(ctx, store.KeyFormList, string(b))
}

// nextID returns form_<unix ms>, bumped past every id issued or observed
func (m *Manager) nextID() string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	ms := m.now().UnixMilli()
	if ms <= m.lastID {
		ms = m.lastID + 1
	}
	m.lastID = ms
	return IDPrefix + strconv.FormatInt(ms, 10)
}

func (m *Manager) observeID(id string) {
	ms := idMillis(id)
	m.idMu.Lock()
	if ms > m.lastID {
		m.lastID = ms
	}
	m.idMu.Unlock()
}
