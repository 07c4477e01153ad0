package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kt34/ai-notes/internal/llm"
	"github.com/kt34/ai-notes/internal/logging"
	"github.com/kt34/ai-notes/internal/metrics"
)

// EmptyTranscriptDocument is returned without calling the model when the
// transcript is empty.
const EmptyTranscriptDocument = "No transcript provided to summarize."

const errorDocumentPrefix = "Error generating summary: "

// IsErrorDocument reports whether doc is the degraded output of a failed
// overall-summary call. Such documents must not be persisted.
func IsErrorDocument(doc string) bool {
	return strings.HasPrefix(doc, errorDocumentPrefix)
}

// Summarizer generates the marker-delimited summary document for a
// transcript. Section summaries and flashcards are generated concurrently;
// both complete before the document is assembled.
type Summarizer struct {
	client       llm.Client
	sectionWords int
	callTimeout  time.Duration
	met          *metrics.Metrics
	log          zerolog.Logger
}

type Option func(*Summarizer)

func WithSectionWords(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.sectionWords = n
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Summarizer) {
		s.met = m
	}
}

func New(client llm.Client, opts ...Option) *Summarizer {
	s := &Summarizer{
		client:       client,
		sectionWords: DefaultSectionWords,
		callTimeout:  2 * time.Minute,
		met:          metrics.Default,
		log:          logging.WithComponent("summarize"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize produces the full summary document for a transcript.
//
// The returned document is always usable as a string. A non-nil error means
// the overall-summary call failed and the document is the error sentinel;
// callers must not persist it. Per-section and flashcard failures degrade to
// placeholders and do not produce an error.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return EmptyTranscriptDocument, nil
	}

	sections := SplitSections(transcript, s.sectionWords)
	s.log.Debug().Int("sections", len(sections)).Msg("starting summarization")

	sectionSummaries := make([]SectionSummary, len(sections))
	var flashcards []Flashcard

	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		g.Go(func() error {
			sectionSummaries[i] = s.sectionSummary(gctx, section, i+1, len(sections))
			return nil
		})
	}
	g.Go(func() error {
		flashcards = s.generateFlashcards(gctx, transcript)
		return nil
	})
	// Section and flashcard tasks never return errors; Wait is a join.
	_ = g.Wait()

	raw, err := s.complete(ctx, "overall", overallPrompt(transcript))
	if err != nil {
		s.log.Error().Err(err).Msg("overall summary call failed")
		return errorDocumentPrefix + err.Error(), fmt.Errorf("overall summary: %w", err)
	}

	return assemble(raw, sectionSummaries, flashcards), nil
}

func (s *Summarizer) sectionSummary(ctx context.Context, section string, number, total int) SectionSummary {
	raw, err := s.completeJSON(ctx, "section", sectionPrompt(section, number, total))
	if err == nil {
		var summary SectionSummary
		if jsonErr := json.Unmarshal([]byte(raw), &summary); jsonErr == nil {
			return summary
		}
		err = fmt.Errorf("unmarshal section summary: %s", raw)
	}

	s.log.Warn().Err(err).Int("section", number).Msg("section summary degraded to placeholder")
	return SectionSummary{
		SectionTitle:     fmt.Sprintf("Section %d", number),
		KeyTakeaways:     []string{},
		NewVocabulary:    []string{},
		StudyQuestions:   []string{},
		Examples:         []string{},
		UsefulReferences: []Reference{},
	}
}

func (s *Summarizer) generateFlashcards(ctx context.Context, transcript string) []Flashcard {
	raw, err := s.completeJSON(ctx, "flashcards", flashcardPrompt(transcript))
	if err != nil {
		s.log.Warn().Err(err).Msg("flashcard generation failed")
		return []Flashcard{}
	}
	return decodeFlashcards(raw)
}

// decodeFlashcards accepts either a bare JSON array or a single-key object
// wrapping the array. Anything else yields an empty list.
func decodeFlashcards(raw string) []Flashcard {
	var cards []Flashcard
	if err := json.Unmarshal([]byte(raw), &cards); err == nil {
		return cards
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
		for _, value := range wrapped {
			if err := json.Unmarshal(value, &cards); err == nil {
				return cards
			}
		}
	}
	return []Flashcard{}
}

func assemble(raw string, sectionSummaries []SectionSummary, flashcards []Flashcard) string {
	sectionJSON, err := json.MarshalIndent(sectionSummaries, "", "  ")
	if err != nil {
		sectionJSON = []byte("[]")
	}
	flashcardJSON, err := json.MarshalIndent(flashcards, "", "  ")
	if err != nil {
		flashcardJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(raw, " \t\n"))
	b.WriteString("\n\n@@SECTION_SUMMARIES_START@@\n")
	b.Write(sectionJSON)
	b.WriteString("\n@@SECTION_SUMMARIES_END@@\n")
	b.WriteString("\n@@FLASHCARDS_START@@\n")
	b.Write(flashcardJSON)
	b.WriteString("\n@@FLASHCARDS_END@@\n")
	return b.String()
}

func (s *Summarizer) complete(ctx context.Context, kind, prompt string) (string, error) {
	return s.call(ctx, kind, prompt, s.client.Complete)
}

func (s *Summarizer) completeJSON(ctx context.Context, kind, prompt string) (string, error) {
	return s.call(ctx, kind, prompt, s.client.CompleteJSON)
}

// call issues one model call with the per-call timeout. There are no
// retries; failures degrade immediately at the call site.
func (s *Summarizer) call(ctx context.Context, kind, prompt string, fn func(context.Context, []llm.Message) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	start := time.Now()
	result, err := fn(ctx, []llm.Message{{Role: "user", Content: prompt}})
	s.met.RecordLLMCall(kind, err, time.Since(start).Seconds())
	return result, err
}
