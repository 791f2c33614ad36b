package render

import (
	"regexp"
	"time"
)

const BlankFilename = "Clinical_Supervision_Form_Blank.pdf"

var (
	whitespace = regexp.MustCompile(`\s+`)
	// path separators, drive colons, control chars and dot runs
	unsafeRun = regexp.MustCompile(`[/\\:\x00-\x1f\x7f]+|\.{2,}`)
)

// Filename names a filled export. Missing names and date fall back the way
// the form always has; whitespace runs become underscores. The result is a
// single path element.
func Filename(supervisor, staff, reviewType, date string, now time.Time) string {
	if supervisor == "" {
		supervisor = "Unknown_Supervisor"
	}
	if staff == "" {
		staff = "Unknown_Staff"
	}
	if date == "" {
		date = now.UTC().Format(time.DateOnly)
	}
	parts := []string{"Clinical_Supervision", supervisor, staff, reviewType, date}
	name := ""
	for i, p := range parts {
		if i > 0 {
			name += "_"
		}
		name += unsafeRun.ReplaceAllString(p, "_")
	}
	return whitespace.ReplaceAllString(name, "_") + ".pdf"
}
