package form

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
)

// private snapshot keys
const (
	KeyExpandedSections = "_expandedSections"
	KeyLastSaved        = "_lastSaved"
)

// LastSavedLayout matches the browser's Date.toISOString
const LastSavedLayout = "2006-01-02T15:04:05.000Z"

// Snapshot is the serialized form: field values by registry key,
// expanded section ids, signature data urls by pad id, and the save time.
// On the wire it is one flat JSON object with "_" prefixed private keys.
type Snapshot struct {
	Fields           map[string]any    // string | bool
	ExpandedSections []string
	Signatures       map[string]string // pad id -> data url ("" = blank)
	LastSaved        time.Time         // zero until saved
}

func (s *Snapshot) String(key string) string {
	v, _ := s.Fields[key].(string)
	return v
}

func (s *Snapshot) Bool(key string) bool {
	v, _ := s.Fields[key].(bool)
	return v
}

// Clone returns a deep copy
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Fields:           maps.Clone(s.Fields),
		ExpandedSections: slices.Clone(s.ExpandedSections),
		Signatures:       maps.Clone(s.Signatures),
		LastSaved:        s.LastSaved,
	}
}

func signatureKey(padID string) string { return "_" + padID }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(s.Fields)+len(s.Signatures)+2)
	for k, v := range s.Fields {
		flat[k] = v
	}
	expanded := s.ExpandedSections
	if expanded == nil {
		expanded = []string{}
	}
	flat[KeyExpandedSections] = expanded
	for id, url := range s.Signatures {
		flat[signatureKey(id)] = url
	}
	if !s.LastSaved.IsZero() {
		flat[KeyLastSaved] = s.LastSaved.UTC().Format(LastSavedLayout)
	}
	return json.Marshal(flat, json.Deterministic(true))
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	*s = Snapshot{Fields: map[string]any{}, Signatures: map[string]string{}}
	for k, v := range flat {
		if !strings.HasPrefix(k, "_") {
			switch tv := v.(type) {
			case string, bool:
				s.Fields[k] = tv
			case float64:
				s.Fields[k] = strconv.FormatFloat(tv, 'f', -1, 64)
			}
			continue
		}
		switch k {
		case KeyExpandedSections:
			ids, _ := v.([]any)
			for _, id := range ids {
				if str, ok := id.(string); ok {
					s.ExpandedSections = append(s.ExpandedSections, str)
				}
			}
		case KeyLastSaved:
			str, _ := v.(string)
			if str == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				return fmt.Errorf("form: %s: %w", KeyLastSaved, err)
			}
			s.LastSaved = t
		default:
			// any other private string is a signature image
			if str, ok := v.(string); ok {
				s.Signatures[k[1:]] = str
			}
		}
	}
	return nil
}

func EncodeSnapshot(s *Snapshot) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeSnapshot(raw string) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
