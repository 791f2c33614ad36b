package drafts

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zeptools/clinsup/form"
)

const (
	IDPrefix = "form_"

	DateLayout = "2006-01-02"

	unknownSupervisor = "Unknown Supervisor"
	unknownStaff      = "Unknown Staff"
	unknownDate       = "Unknown Date"
)

// Meta is one Draft List entry. Always recomputed from the snapshot on write.
type Meta struct {
	ID             string `json:"id"`
	SupervisorName string `json:"supervisorName"`
	StaffName      string `json:"staffName"`
	Date           string `json:"date"`
	ReviewType     string `json:"reviewType"`
	LastSaved      string `json:"lastSaved"`
}

func MetaOf(id string, snap *form.Snapshot) Meta {
	m := Meta{
		ID:             id,
		SupervisorName: orDefault(snap.String("supervisorName"), unknownSupervisor),
		StaffName:      orDefault(snap.String("staffName"), unknownStaff),
		Date:           orDefault(snap.String("supervisionDate"), unknownDate),
		ReviewType:     orDefault(snap.String("reviewType"), "general"),
	}
	if !snap.LastSaved.IsZero() {
		m.LastSaved = snap.LastSaved.UTC().Format(form.LastSavedLayout)
	}
	return m
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// SavedAt parses LastSaved; zero when missing or malformed
func (m Meta) SavedAt() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, m.LastSaved)
	return t
}

// idMillis extracts the timestamp from form_<ms>; 0 for foreign ids
func idMillis(id string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, IDPrefix), 10, 64)
	if err != nil || !strings.HasPrefix(id, IDPrefix) {
		return 0
	}
	return n
}

// sortMetas orders by last saved, newest first, then by id descending
func sortMetas(list []Meta) {
	slices.SortStableFunc(list, func(a, b Meta) int {
		if c := b.SavedAt().Compare(a.SavedAt()); c != 0 {
			return c
		}
		if c := cmp.Compare(idMillis(b.ID), idMillis(a.ID)); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// upsertMeta leaves exactly one entry for m.ID, dropping stale duplicates
func upsertMeta(list []Meta, m Meta) []Meta {
	list = slices.DeleteFunc(list, func(x Meta) bool { return x.ID == m.ID })
	return append(list, m)
}

func removeMeta(list []Meta, id string) ([]Meta, bool) {
	n := len(list)
	list = slices.DeleteFunc(list, func(x Meta) bool { return x.ID == id })
	return list, len(list) != n
}
