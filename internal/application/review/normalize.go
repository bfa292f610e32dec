package review

import (
	"strings"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
)

// Default severity and category for each finding list. Normalization reads
// only this table.
var categoryDefaults = []struct {
	key      string
	category domain.Category
	severity domain.Severity
	findings func(*domain.Analysis) []domain.Finding
}{
	{domain.KeyBugs, domain.CategoryBug, domain.SeverityHigh,
		func(a *domain.Analysis) []domain.Finding { return a.Bugs }},
	{domain.KeySecurity, domain.CategorySecurity, domain.SeverityCritical,
		func(a *domain.Analysis) []domain.Finding { return a.SecurityVulnerabilities }},
	{domain.KeyImprovements, domain.CategoryImprovement, domain.SeverityMedium,
		func(a *domain.Analysis) []domain.Finding { return a.Improvements }},
	{domain.KeyExplanations, domain.CategoryExplanation, domain.SeverityInfo,
		func(a *domain.Analysis) []domain.Finding { return a.Explanations }},
}

const noFindingsMessage = "No significant issues, vulnerabilities, or improvements were identified in the analyzed code."

// DefaultSeverity returns the severity assumed for findings under key.
func DefaultSeverity(key string) (domain.Severity, bool) {
	for _, d := range categoryDefaults {
		if d.key == key {
			return d.severity, true
		}
	}
	return "", false
}

// Normalizer flattens extraction output into UI issues.
type Normalizer struct {
	// NewID must return a distinct value on every call.
	NewID func() string
}

func (n Normalizer) id() string {
	if n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// FromExtraction maps parsed findings in category order, or the raw text when
// parsing failed.
func (n Normalizer) FromExtraction(ex domain.Extraction, src domain.Source) []domain.Issue {
	if !ex.OK || ex.Analysis == nil {
		return n.Raw(ex.Raw)
	}
	return n.FromAnalysis(ex.Analysis, src)
}

// FromAnalysis emits one issue per finding. An analysis with no findings
// yields a single informational issue.
func (n Normalizer) FromAnalysis(a *domain.Analysis, src domain.Source) []domain.Issue {
	if a.Empty() {
		return []domain.Issue{{
			ID:       n.id(),
			Category: domain.CategoryInfo,
			Message:  noFindingsMessage,
			Line:     domain.NotApplicable,
			Severity: domain.SeverityInfo,
		}}
	}

	var issues []domain.Issue
	for _, d := range categoryDefaults {
		for _, f := range d.findings(a) {
			issues = append(issues, domain.Issue{
				ID:           n.id(),
				Category:     d.category,
				Message:      f.Message,
				Line:         lineOrNA(string(f.Line)),
				Severity:     severityOr(f.Severity, d.severity),
				SuggestedFix: optional(f.SuggestedFix),
				FilePath:     filePathOr(f.FilePath, src.Label()),
			})
		}
	}
	return issues
}

// Raw wraps unparsed model text in a single issue.
func (n Normalizer) Raw(raw string) []domain.Issue {
	return []domain.Issue{{
		ID:       n.id(),
		Category: domain.CategoryRaw,
		Message:  raw,
		Line:     domain.NotApplicable,
		Severity: domain.SeverityInfo,
	}}
}

// Error turns a failed request into the single issue the UI renders.
func (n Normalizer) Error(err error) []domain.Issue {
	return []domain.Issue{{
		ID:       n.id(),
		Category: domain.CategoryError,
		Message:  domain.UserMessage(err),
		Line:     domain.NotApplicable,
		Severity: domain.SeverityHigh,
	}}
}

func severityOr(s, fallback domain.Severity) domain.Severity {
	s = domain.Severity(strings.ToLower(strings.TrimSpace(string(s))))
	if s.Valid() {
		return s
	}
	return fallback
}

func lineOrNA(line string) string {
	if strings.TrimSpace(line) == "" {
		return domain.NotApplicable
	}
	return line
}

func optional(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, domain.NotApplicable) {
		return ""
	}
	return s
}

func filePathOr(p, fallback string) string {
	if p = optional(p); p != "" {
		return p
	}
	return fallback
}
