package review

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bryanwahyu/automaton-review/internal/application"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
)

// Service runs one code review per call. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	Client    domain.CompletionClient
	Extractor domain.ResponseExtractor
	Archives  domain.ArchiveExtractor
	Assembler domain.CorpusAssembler
	Prompts   domain.PromptBuilder
	Issues    Normalizer
	Clock     application.Clock
}

// Analyze resolves the submission into a corpus, asks the model for a review
// and normalizes the reply. Scratch files are gone by the time it returns.
func (s *Service) Analyze(ctx context.Context, sub domain.Submission) (*domain.Result, error) {
	start := application.Now(s.Clock)

	corpus, src, cleanup, err := s.resolve(sub)
	defer cleanup()
	if err != nil {
		log.Printf("analysis rejected kind=%s name=%q err=%v", sub.Kind, sub.Name, err)
		return nil, err
	}

	prompt := s.Prompts.Build(corpus.Text, sub.Kind == domain.KindArchive)
	raw, err := s.Client.Complete(ctx, prompt)
	if err != nil {
		log.Printf("completion failed provider=%s kind=%s err=%v", s.Client.Name(), sub.Kind, err)
		return nil, err
	}

	ex := s.Extractor.Extract(raw)
	res := &domain.Result{
		Analysis: ex.Analysis,
		Document: ex.Document,
		Raw:      ex.Raw,
		Parsed:   ex.OK,
		Message:  corpus.Message,
		Source:   src,
		Issues:   s.Issues.FromExtraction(ex, src),
	}
	res.DurationMS = application.ElapsedMS(s.Clock, start)

	log.Printf("analysis done provider=%s kind=%s files=%d parsed=%t issues=%d duration_ms=%d",
		s.Client.Name(), src.Kind, src.FilesIncluded, res.Parsed, len(res.Issues), res.DurationMS)
	return res, nil
}

func (s *Service) resolve(sub domain.Submission) (domain.Corpus, domain.Source, func(), error) {
	noop := func() {}

	switch sub.Kind {
	case domain.KindPaste:
		if strings.TrimSpace(sub.Code) == "" {
			return domain.Corpus{}, domain.Source{}, noop, domain.ErrEmptyOrInvalidCode
		}
		corpus := domain.Corpus{Text: sub.Code, FilesIncluded: 1, Message: "Analyzing pasted code."}
		return corpus, domain.Source{Kind: domain.KindPaste, FilesIncluded: 1}, noop, nil

	case domain.KindFile:
		if !domain.IsSupportedFile(sub.Name) {
			return domain.Corpus{}, domain.Source{}, noop, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, sub.Name)
		}
		text := string(sub.Data)
		if strings.TrimSpace(text) == "" {
			return domain.Corpus{}, domain.Source{}, noop, domain.ErrEmptyOrInvalidCode
		}
		corpus := domain.Corpus{
			Text:          text,
			FilesIncluded: 1,
			Files:         []string{sub.Name},
			Message:       fmt.Sprintf("Analyzing single file: %s.", sub.Name),
		}
		src := domain.Source{Kind: domain.KindFile, Name: sub.Name, FilesIncluded: 1, Files: corpus.Files}
		return corpus, src, noop, nil

	case domain.KindArchive:
		files, cleanup, err := s.Archives.Extract(sub.Data)
		if err != nil {
			return domain.Corpus{}, domain.Source{}, cleanup, err
		}
		corpus := s.Assembler.Assemble(sub.Name, files)
		src := domain.Source{
			Kind:          domain.KindArchive,
			Name:          sub.Name,
			FilesIncluded: corpus.FilesIncluded,
			Files:         corpus.Files,
		}
		return corpus, src, cleanup, nil
	}
	return domain.Corpus{}, domain.Source{}, noop, fmt.Errorf("unknown submission kind %q", sub.Kind)
}
