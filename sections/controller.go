// Package sections tracks which collapsible form sections are shown.
package sections

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

type State uint8

const (
	Hidden State = iota
	Collapsed
	Expanded
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Collapsed:
		return "collapsed"
	case Expanded:
		return "expanded"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

type ReviewType string

const (
	General ReviewType = "general"
	Client  ReviewType = "client"
)

// ParseReviewType maps anything but "client" to General
func ParseReviewType(s string) ReviewType {
	if ReviewType(s) == Client {
		return Client
	}
	return General
}

const (
	CaseReview = "case-review-section"
	Comments   = "comments-section"
)

var ErrUnknownSection = errors.New("sections: unknown section")

// Controller holds the per-section state machine.
type Controller struct {
	mu     sync.Mutex
	order  []string
	states map[string]State
	review ReviewType
}

// NewController starts with every section collapsed and review type general applied
func NewController(ids []string) *Controller {
	c := &Controller{order: slices.Clone(ids), states: make(map[string]State, len(ids))}
	c.Reset()
	return c
}

func (c *Controller) Reset() {
	c.mu.Lock()
	for _, id := range c.order {
		c.states[id] = Collapsed
	}
	c.mu.Unlock()
	c.ApplyReviewType(General)
}

func (c *Controller) ReviewType() ReviewType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.review
}

// ApplyReviewType enforces the visibility policy of rt. Idempotent.
func (c *Controller) ApplyReviewType(rt ReviewType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.review = rt
	for _, id := range c.order {
		if rt == Client {
			switch id {
			case CaseReview:
				c.states[id] = Expanded
			case Comments:
				c.show(id)
			default:
				c.states[id] = Hidden
			}
			continue
		}
		if id == CaseReview {
			c.states[id] = Hidden
		} else {
			c.show(id)
		}
	}
}

// show makes a hidden section collapsed and leaves visible ones alone
func (c *Controller) show(id string) {
	if c.states[id] == Hidden {
		c.states[id] = Collapsed
	}
}

// Toggle flips a visible section between collapsed and expanded.
// Hidden sections do not react.
func (c *Controller) Toggle(id string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[id]
	if !ok {
		return Hidden, fmt.Errorf("%w: %q", ErrUnknownSection, id)
	}
	switch s {
	case Collapsed:
		s = Expanded
	case Expanded:
		s = Collapsed
	}
	c.states[id] = s
	return s, nil
}

// Expand marks ids expanded. Unknown ids are ignored; callers re-apply the
// review type afterwards to enforce eligibility.
func (c *Controller) Expand(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.states[id]; ok {
			c.states[id] = Expanded
		}
	}
}

func (c *Controller) State(id string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[id]
	return s, ok
}

// Set forces one section's state, used to reveal or restore around rendering
func (c *Controller) Set(id string, s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, id)
	}
	c.states[id] = s
	return nil
}

func (c *Controller) IsEligible(id string) bool {
	s, ok := c.State(id)
	return ok && s != Hidden
}

// Eligible returns the sections the current review type shows, in order
func (c *Controller) Eligible() []string {
	return c.filter(func(s State) bool { return s != Hidden })
}

// Expanded returns the expanded sections, in order
func (c *Controller) Expanded() []string {
	return c.filter(func(s State) bool { return s == Expanded })
}

func (c *Controller) filter(keep func(State) bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, id := range c.order {
		if keep(c.states[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Controller) Snapshot() map[string]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.states)
}

func (c *Controller) Restore(states map[string]State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range states {
		if _, ok := c.states[id]; ok {
			c.states[id] = s
		}
	}
}
