package prompt

import (
	"fmt"
	"strings"
)

const instructions = `You are an expert code reviewer. Analyze the code below and report bugs, security vulnerabilities, possible improvements and explanations of what the code does.

You must respond with exactly one valid JSON object and nothing else. No markdown, no commentary, no code fences.

The object must have exactly these four top-level keys, each holding a list (use an empty list when there is nothing to report):
- "bugs"
- "security_vulnerabilities"
- "improvements"
- "explanations"

Every list entry is an object with these fields:
{
  "message": "<what is wrong or what the code does, and why it matters>",
  "line": "<line number as a string, or \"N/A\">",
  "severity": "<low|medium|high|critical|info>",
  "suggestedFix": "<concrete fix, code allowed, or \"N/A\">"%s
}
%s`

const filePathField = `,
  "filePath": "<relative path of the file the entry refers to, or \"N/A\">"`

const multiFileNote = `
The code consists of several files concatenated together. Each file starts with a line "// --- Start of file: <path> ---" and ends with "// --- End of file: <path> ---". Use those markers to fill "filePath" for every entry; when the file cannot be determined use "N/A". Line numbers are relative to the start of that file.
`

// Build embeds code into the review instructions. multiFile adds the
// filePath field and marker guidance used for archive corpora.
func Build(code string, multiFile bool) string {
	field, note := "", ""
	if multiFile {
		field, note = filePathField, multiFileNote
	}
	var b strings.Builder
	b.Grow(len(instructions) + len(code) + 64)
	fmt.Fprintf(&b, instructions, field, note)
	b.WriteString("\nCode to analyze:\n--- BEGIN CODE ---\n")
	b.WriteString(code)
	b.WriteString("\n--- END CODE ---\n")
	return b.String()
}

// Builder adapts Build to the PromptBuilder port.
type Builder struct{}

func (Builder) Build(code string, multiFile bool) string { return Build(code, multiFile) }
