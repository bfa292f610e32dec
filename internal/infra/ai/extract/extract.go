// Package extract recovers the review JSON object from free-form model output.
//
// Recovery is two-staged: take the body of the first ```json fence, or else
// the first brace-balanced {...} substring, then parse it and check that all
// four category keys hold lists. Entries inside those lists are read
// leniently. It is text recovery, not a JSON scanner: when a reply carries
// several JSON-looking objects only the first one is considered, and a fence
// that holds broken JSON is not retried with the brace strategy.
package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
)

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// Extractor is the default two-stage ResponseExtractor.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract never fails; on failure Raw carries the reply verbatim and OK is false.
func (Extractor) Extract(raw string) domain.Extraction {
	out := domain.Extraction{Raw: raw}
	candidate := Candidate(raw)
	if candidate == "" {
		return out
	}
	a, ok := Parse(candidate)
	if !ok {
		return out
	}
	out.Analysis = a
	out.Document = json.RawMessage(candidate)
	out.OK = true
	return out
}

// Candidate returns the substring most likely to hold the JSON object.
func Candidate(raw string) string {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return firstObject(raw)
}

// firstObject returns the first {...} whose braces balance, skipping braces
// inside JSON strings. It returns "" when no object closes.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Parse decodes candidate and checks the four list-valued keys. Only those
// two checks can reject it; entries are read leniently by decodeEntry.
func Parse(candidate string) (*domain.Analysis, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &top); err != nil {
		return nil, false
	}
	lists := make(map[string][]json.RawMessage, len(domain.RequiredKeys))
	for _, key := range domain.RequiredKeys {
		v, ok := top[key]
		if !ok || !isList(v) {
			return nil, false
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(v, &entries); err != nil {
			return nil, false
		}
		lists[key] = entries
	}
	return &domain.Analysis{
		Bugs:                    decodeEntries(lists[domain.KeyBugs]),
		SecurityVulnerabilities: decodeEntries(lists[domain.KeySecurity]),
		Improvements:            decodeEntries(lists[domain.KeyImprovements]),
		Explanations:            decodeEntries(lists[domain.KeyExplanations]),
	}, true
}

func decodeEntries(raw []json.RawMessage) []domain.Finding {
	out := make([]domain.Finding, 0, len(raw))
	for _, r := range raw {
		if f, ok := decodeEntry(r); ok {
			out = append(out, f)
		}
	}
	return out
}

// decodeEntry accepts an object or a bare string/number message. Fields of an
// unexpected type are coerced to text or left empty for the category
// defaults. Only null, empty arrays and objects without any text are dropped.
func decodeEntry(r json.RawMessage) (domain.Finding, bool) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 {
		return domain.Finding{}, false
	}
	switch r[0] {
	case '{':
	case '[', 'n':
		if msg := compact(r); r[0] == '[' && msg != "[]" {
			return domain.Finding{Message: msg}, true
		}
		return domain.Finding{}, false
	case 't', 'f':
		return domain.Finding{Message: string(r)}, true
	default:
		msg := domain.ScalarText(r)
		return domain.Finding{Message: msg}, msg != ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r, &fields); err != nil {
		return domain.Finding{}, false
	}
	var line domain.Line
	if v, ok := fields["line"]; ok {
		if err := json.Unmarshal(v, &line); err != nil {
			line = ""
		}
	}
	f := domain.Finding{
		Message:      text(fields["message"]),
		Line:         line,
		Severity:     domain.Severity(domain.ScalarText(fields["severity"])),
		SuggestedFix: text(fields["suggestedFix"]),
		FilePath:     domain.ScalarText(fields["filePath"]),
	}
	if len(fields) == 0 {
		return domain.Finding{}, false
	}
	return f, true
}

// text is ScalarText, except structured values are kept as compact JSON.
func text(v json.RawMessage) string {
	if t := domain.ScalarText(v); t != "" {
		return t
	}
	v = bytes.TrimSpace(v)
	if len(v) > 0 && (v[0] == '{' || v[0] == '[') {
		return compact(v)
	}
	return ""
}

func compact(v json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Compact(&b, v); err != nil {
		return string(v)
	}
	return b.String()
}

func isList(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}
