// Package session is the application state one user works in:
// the live form, its section states and the current draft.
package session

import (
	"sync"

	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/sections"
	"github.com/zeptools/clinsup/store"
)

// Session is created once per user by drafts.Manager.Open and passed to
// every manager, validator and renderer call. Callers hold the lock around
// any sequence that reads or mutates it; debounced saves take it too.
type Session struct {
	mu sync.Mutex

	User     string
	Scope    *store.Scope
	Form     *form.State
	Sections *sections.Controller

	// CurrentID is the draft the live form belongs to
	CurrentID string
	// Baseline is what the live form is compared against for unsaved changes:
	// the last snapshot written or loaded, or the fresh defaults of a new draft.
	Baseline *form.Snapshot
}

func New(user string, scope *store.Scope, schema *form.Schema) *Session {
	return &Session{
		User:     user,
		Scope:    scope,
		Form:     form.NewState(schema),
		Sections: sections.NewController(schema.ToggleSections()),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// ApplyReviewType re-reads the review type control and applies its policy
func (s *Session) ApplyReviewType() sections.ReviewType {
	rt := sections.ParseReviewType(s.Form.Get("reviewType"))
	s.Sections.ApplyReviewType(rt)
	return rt
}
