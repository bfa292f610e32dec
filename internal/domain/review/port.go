package review

import "context"

// CompletionClient sends a prompt to the model and returns its raw reply.
// Implementations make exactly one attempt and classify failures as
// ErrUpstreamAuth, ErrUpstreamQuota or ErrUpstreamUnavailable.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ResponseExtractor recovers an Analysis from free-form model output.
type ResponseExtractor interface {
	Extract(raw string) Extraction
}

// ArchiveExtractor unpacks a zip into a fresh scratch directory and lists
// candidate source files. cleanup is never nil and must run on every path.
type ArchiveExtractor interface {
	Extract(data []byte) (files []CandidateFile, cleanup func(), err error)
}

// PromptBuilder embeds code into the review instructions.
type PromptBuilder interface {
	Build(code string, multiFile bool) string
}

// CorpusAssembler selects files under a budget and concatenates them.
type CorpusAssembler interface {
	Assemble(archiveName string, files []CandidateFile) Corpus
}
