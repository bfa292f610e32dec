package ingest

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
)

// EmptyCorpusText replaces the corpus when no file could be included.
const EmptyCorpusText = "No supported code files were found in the uploaded archive, " +
	"or every file exceeded the analysis size limit. " +
	"Explain to the user that there was nothing to review."

// Assembler picks archive files under a size budget and concatenates them
// with start/end markers.
type Assembler struct {
	// Budget is compared against the running sum of len(chars)/4.
	Budget   int
	ReadFile func(name string) ([]byte, error)
}

func NewAssembler(budget int) *Assembler {
	return &Assembler{Budget: budget, ReadFile: os.ReadFile}
}

// EstimateCost approximates the model token count of text.
func EstimateCost(text string) float64 {
	return float64(utf8.RuneCountInString(text)) / 4
}

// Assemble orders files largest first (stable), then adds them until the
// next one would overflow the budget. Selection stops at the first overflow;
// smaller files after it are not considered.
func (a *Assembler) Assemble(archiveName string, files []domain.CandidateFile) domain.Corpus {
	ordered := make([]domain.CandidateFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Size > ordered[j].Size
	})

	read := a.ReadFile
	if read == nil {
		read = os.ReadFile
	}

	var (
		parts    []string
		included []string
		used     float64
	)
	for _, f := range ordered {
		data, err := read(f.AbsPath)
		if err != nil {
			log.Printf("corpus skip file=%s err=%v", f.RelPath, err)
			continue
		}
		text := string(data)
		cost := EstimateCost(text)
		if used+cost > float64(a.Budget) {
			break
		}
		used += cost
		parts = append(parts, wrapFile(f.RelPath, text))
		included = append(included, f.RelPath)
	}

	if len(included) == 0 {
		return domain.Corpus{
			Text:    EmptyCorpusText,
			Message: fmt.Sprintf("Analyzing codebase from ZIP: %s (no supported files could be included).", archiveName),
		}
	}
	return domain.Corpus{
		Text:          strings.Join(parts, "\n\n"),
		FilesIncluded: len(included),
		Files:         included,
		Message:       fmt.Sprintf("Analyzing codebase from ZIP: %s (processed %d key files).", archiveName, len(included)),
	}
}

func wrapFile(rel, text string) string {
	return fmt.Sprintf("// --- Start of file: %s ---\n%s\n// --- End of file: %s ---", rel, text, rel)
}
