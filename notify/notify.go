// Package notify carries user-visible messages out of operation boundaries.
package notify

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/zeptools/clinsup/apperr"
)

type Level int

const (
	Info Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "info"
}

type Notification struct {
	Level   Level
	Message string
}

func Infof(format string, args ...any) Notification {
	return Notification{Level: Info, Message: fmt.Sprintf(format, args...)}
}

func Errorf(format string, args ...any) Notification {
	return Notification{Level: Error, Message: fmt.Sprintf(format, args...)}
}

type Notifier interface {
	Notify(n Notification)
}

// FromError turns an operation error into the message shown to the user
func FromError(err error) Notification {
	var (
		ve *apperr.ValidationError
		sf *apperr.StorageFailure
		rf *apperr.RenderFailure
	)
	switch {
	case errors.As(err, &ve):
		return Errorf("Please complete all required fields and signatures")
	case errors.Is(err, apperr.ErrCanceled):
		return Infof("Kept current changes")
	case errors.Is(err, apperr.ErrNotFound):
		return Errorf("Draft not found: %v", err)
	case errors.As(err, &sf):
		return Errorf("Could not access saved drafts (%s): %v", sf.Op, sf.Err)
	case errors.As(err, &rf):
		return Errorf("Error capturing section %s: %v", rf.SectionID, rf.Err)
	}
	return Errorf("Error: %v", err)
}

// All expands err into every notification it raises, in order. A missing
// staff signature gets its own message ahead of the summary.
func All(err error) []Notification {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) && slices.Contains(ve.Signatures, "staffSignature") {
		return []Notification{Errorf("Staff signature is required"), FromError(err)}
	}
	return []Notification{FromError(err)}
}

// Logger writes notifications to a zap logger
type Logger struct {
	Log *zap.Logger
}

func (l Logger) Notify(n Notification) {
	if l.Log == nil {
		return
	}
	if n.Level == Error {
		l.Log.Warn(n.Message, zap.String("notification", n.Level.String()))
		return
	}
	l.Log.Info(n.Message, zap.String("notification", n.Level.String()))
}

// Writer prints notifications for a terminal
type Writer struct {
	Out io.Writer
}

func (w Writer) Notify(n Notification) {
	prefix := ""
	if n.Level == Error {
		prefix = "error: "
	}
	_, _ = fmt.Fprintln(w.Out, prefix+n.Message)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.all)
}

// Multi fans out to several notifiers
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Nop drops everything
type Nop struct{}

func (Nop) Notify(Notification) {}
