// Package bootstrap assembles the review pipeline shared by the server and the CLI.
package bootstrap

import (
	"context"

	"github.com/bryanwahyu/automaton-review/internal/application"
	appreview "github.com/bryanwahyu/automaton-review/internal/application/review"
	"github.com/bryanwahyu/automaton-review/internal/config"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/extract"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/prompt"
	"github.com/bryanwahyu/automaton-review/internal/infra/ingest"
)

func NewReviewService(ctx context.Context, cfg *config.Config) *appreview.Service {
	return &appreview.Service{
		Client:    ai.NewClient(ctx, cfg),
		Extractor: extract.New(),
		Archives:  ingest.NewArchiveExtractor(cfg.Limits.ScratchDir, cfg.Limits.MaxExtractedBytes),
		Assembler: ingest.NewAssembler(cfg.Limits.CorpusBudget),
		Prompts:   prompt.Builder{},
		Clock:     application.SystemClock{},
	}
}
