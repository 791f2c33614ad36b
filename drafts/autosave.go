package drafts

import (
	"context"
	"image"
	"time"

	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/notify"
	"github.com/zeptools/clinsup/schedjobs"
	"github.com/zeptools/clinsup/session"
)

const (
	// ChangeWait debounces discrete controls
	ChangeWait = 500 * time.Millisecond
	// InputWait debounces free text typing and signature strokes
	InputWait = 1000 * time.Millisecond
)

// AutoSaver applies edits to a session and schedules silent saves,
// one trailing-edge timer per control and event stream.
type AutoSaver struct {
	m        *Manager
	sess     *session.Session
	deb      *schedjobs.Debouncer
	notifier notify.Notifier
	ctx      context.Context
}

func NewAutoSaver(ctx context.Context, m *Manager, sess *session.Session, deb *schedjobs.Debouncer) *AutoSaver {
	return &AutoSaver{m: m, sess: sess, deb: deb, notifier: m.notifier, ctx: ctx}
}

// Edit sets a control and schedules a save. Textareas use the input stream,
// everything else the change stream. Changing the review type re-applies
// section visibility right away.
func (a *AutoSaver) Edit(key, value string) error {
	a.sess.Lock()
	acc, err := a.sess.Form.Field(key)
	if err == nil {
		err = acc.SetString(value)
	}
	if err == nil && key == "reviewType" {
		a.sess.ApplyReviewType()
	}
	a.sess.Unlock()
	if err != nil {
		return err
	}
	if acc.Kind() == form.KindTextarea {
		return a.schedule("input:"+key, InputWait)
	}
	return a.schedule("change:"+key, ChangeWait)
}

func (a *AutoSaver) Check(key string, on bool) error {
	a.sess.Lock()
	err := a.sess.Form.SetBool(key, on)
	a.sess.Unlock()
	if err != nil {
		return err
	}
	return a.schedule("change:"+key, ChangeWait)
}

// Stroke draws on a signature pad and schedules a save
func (a *AutoSaver) Stroke(padID string, width float32, pts ...image.Point) error {
	pad, err := a.sess.Form.Pad(padID)
	if err != nil {
		return err
	}
	pad.Stroke(width, pts...)
	return a.schedule("stroke:"+padID, InputWait)
}

// ClearSignature wipes a pad and schedules a save
func (a *AutoSaver) ClearSignature(padID string) error {
	pad, err := a.sess.Form.Pad(padID)
	if err != nil {
		return err
	}
	pad.Clear()
	return a.schedule("change:"+padID, ChangeWait)
}

// Toggle flips a section; expansion is part of the snapshot
func (a *AutoSaver) Toggle(sectionID string) error {
	if _, err := a.sess.Sections.Toggle(sectionID); err != nil {
		return err
	}
	return a.schedule("change:"+sectionID, ChangeWait)
}

func (a *AutoSaver) schedule(id string, wait time.Duration) error {
	return a.deb.Schedule(&schedjobs.DebouncedJob{
		ID:   id,
		Wait: wait,
		Task: func() error {
			_, err := a.m.SaveDraft(a.ctx, a.sess, true)
			return err
		},
		OnFinished: func(err error) {
			if err != nil {
				a.notifier.Notify(notify.FromError(err))
			}
		},
	})
}
