package notify

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeptools/clinsup/apperr"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		level Level
		want  string
	}{
		{"signature only", &apperr.ValidationError{Signatures: []string{"staffSignature"}}, Error, "Please complete all required fields and signatures"},
		{"fields", &apperr.ValidationError{Fields: []string{"staffName"}}, Error, "Please complete all required fields and signatures"},
		{"canceled", apperr.ErrCanceled, Info, "Kept current changes"},
		{"not found", apperr.NotFound("draft", "form_1"), Error, `Draft not found: draft "form_1": not found`},
		{"storage", &apperr.StorageFailure{Op: "set", Key: "k", Err: errors.New("full")}, Error, "Could not access saved drafts (set): full"},
		{"other", errors.New("boom"), Error, "Error: boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := FromError(tc.err)
			assert.Equal(t, tc.level, n.Level)
			assert.Equal(t, tc.want, n.Message)
		})
	}
}

func TestAll(t *testing.T) {
	messages := func(err error) []string {
		var out []string
		for _, n := range All(err) {
			assert.Equal(t, Error, n.Level)
			out = append(out, n.Message)
		}
		return out
	}
	const summary = "Please complete all required fields and signatures"

	assert.Equal(t, []string{"Staff signature is required", summary},
		messages(&apperr.ValidationError{Signatures: []string{"staffSignature"}}))
	assert.Equal(t, []string{"Staff signature is required", summary},
		messages(&apperr.ValidationError{Fields: []string{"staffName"}, Signatures: []string{"supervisorSignature", "staffSignature"}}))
	assert.Equal(t, []string{summary},
		messages(&apperr.ValidationError{Fields: []string{"staffName"}, Signatures: []string{"supervisorSignature"}}))
	assert.Equal(t, []string{"Error: boom"}, messages(errors.New("boom")))
}

func TestWriterAndRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := &Recorder{}
	m := Multi{Writer{Out: &buf}, rec, nil}
	m.Notify(Infof("Form draft saved successfully"))
	m.Notify(Errorf("Error clearing form"))

	assert.Equal(t, "Form draft saved successfully\nerror: Error clearing form\n", buf.String())
	assert.Len(t, rec.All(), 2)
}
