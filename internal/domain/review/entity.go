package review

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// SubmissionKind tells which variant of a Submission is populated.
type SubmissionKind string

const (
	KindPaste   SubmissionKind = "paste"
	KindFile    SubmissionKind = "file"
	KindArchive SubmissionKind = "archive"
)

// Submission is one request's payload. Exactly one variant is populated:
// Code for KindPaste, Name+Data for KindFile and KindArchive.
type Submission struct {
	Kind SubmissionKind
	Code string
	Name string
	Data []byte
}

// NewUpload builds a Submission for an uploaded file, routing .zip names
// to the archive variant.
func NewUpload(name string, data []byte) Submission {
	if IsArchiveName(name) {
		return Submission{Kind: KindArchive, Name: name, Data: data}
	}
	return Submission{Kind: KindFile, Name: name, Data: data}
}

// CandidateFile is a source file discovered inside an extracted archive.
type CandidateFile struct {
	AbsPath string
	RelPath string
	Size    int64
}

// Corpus is the text handed to the prompt builder.
type Corpus struct {
	Text          string
	FilesIncluded int
	Files         []string
	Message       string
}

// Severity values accepted from the model.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityInfo:
		return true
	}
	return false
}

// NotApplicable is the placeholder the model uses for unknown fields.
const NotApplicable = "N/A"

// Line holds a line reference. Models send "42", "10-12", "N/A", a bare
// number or a [start, end] pair; anything else decodes to "" so the caller
// can apply its default.
type Line string

func (l *Line) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		var out []string
		for _, p := range parts {
			if t := ScalarText(p); t != "" {
				out = append(out, t)
			}
		}
		*l = Line(strings.Join(out, "-"))
		return nil
	}
	*l = Line(ScalarText(b))
	return nil
}

// ScalarText renders a JSON string or number as text. Other values,
// including null, give "".
func ScalarText(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ""
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return ""
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// Finding is one entry of a category list in the model output.
type Finding struct {
	Message      string   `json:"message"`
	Line         Line     `json:"line"`
	Severity     Severity `json:"severity,omitempty"`
	SuggestedFix string   `json:"suggestedFix,omitempty"`
	FilePath     string   `json:"filePath,omitempty"`
}

// Analysis is the contracted shape of the model output.
type Analysis struct {
	Bugs                    []Finding `json:"bugs"`
	SecurityVulnerabilities []Finding `json:"security_vulnerabilities"`
	Improvements            []Finding `json:"improvements"`
	Explanations            []Finding `json:"explanations"`
}

// Analysis JSON keys. All four must be present and list-valued.
const (
	KeyBugs         = "bugs"
	KeySecurity     = "security_vulnerabilities"
	KeyImprovements = "improvements"
	KeyExplanations = "explanations"
)

// RequiredKeys lists the top-level keys in category order.
var RequiredKeys = []string{KeyBugs, KeySecurity, KeyImprovements, KeyExplanations}

// Empty reports whether all four category lists are empty.
func (a *Analysis) Empty() bool {
	return a == nil || len(a.Bugs)+len(a.SecurityVulnerabilities)+len(a.Improvements)+len(a.Explanations) == 0
}

// Extraction is what the response extractor recovered from a raw reply.
type Extraction struct {
	Analysis *Analysis
	// Document is the recovered JSON object exactly as the model sent it.
	Document json.RawMessage
	Raw      string
	OK       bool
}

// Category of a normalized issue.
type Category string

const (
	CategoryBug         Category = "Bug"
	CategorySecurity    Category = "SecurityVulnerability"
	CategoryImprovement Category = "Improvement"
	CategoryExplanation Category = "Explanation"
	CategoryInfo        Category = "AI Analysis"
	CategoryRaw         Category = "AI Analysis (Raw)"
	CategoryError       Category = "Error"
)

// Issue is the UI-facing normalized record.
type Issue struct {
	ID           string   `json:"id"`
	Category     Category `json:"category"`
	Message      string   `json:"message"`
	Line         string   `json:"line"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggestedFix,omitempty"`
	FilePath     string   `json:"filePath,omitempty"`
}

// Source describes what was analyzed, so callers never parse Message.
type Source struct {
	Kind          SubmissionKind `json:"kind"`
	Name          string         `json:"name,omitempty"`
	FilesIncluded int            `json:"filesIncluded"`
	Files         []string       `json:"files,omitempty"`
}

// Label is the fallback file path for findings that carry none.
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return "pasted code"
}

// Result is the outcome of one analysis.
type Result struct {
	Analysis   *Analysis
	Document   json.RawMessage
	Raw        string
	Parsed     bool
	Message    string
	Source     Source
	Issues     []Issue
	DurationMS int64
}
