// Package extract implements the memory extraction pipeline: turning raw
// interaction transcripts into structured memories and conversation
// summaries via the language model.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liaisonhq/liaison/internal/llm"
	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/pkg/types"
)

// Job is one transcript awaiting extraction.
type Job struct {
	Scope      types.Scope
	SourceType types.SourceType
	SourceID   string
	Transcript string

	// Short human-readable identifiers rendered into the extraction prompt.
	PropertyContext string
	ContactContext  string

	// OccurredAt is when the interaction happened. Zero means "now".
	OccurredAt time.Time

	CreatedBy string
}

// Result reports what one extraction run persisted.
type Result struct {
	MemoriesStored int
	SummaryCreated bool
	Extraction     *types.ExtractionResult
}

// Pipeline runs transcripts through the model and persists the output.
type Pipeline struct {
	generator llm.TextGenerator
	memories  *memory.Service
	logger    *slog.Logger
}

// NewPipeline creates an extraction pipeline.
func NewPipeline(generator llm.TextGenerator, memories *memory.Service, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{generator: generator, memories: memories, logger: logger}
}

// Extract runs a transcript through the model and parses the structured
// output. A malformed model response yields an empty result, not an error;
// only transport-level failures error out.
func (p *Pipeline) Extract(ctx context.Context, job Job) (*types.ExtractionResult, error) {
	if p.generator == nil {
		return nil, llm.ErrNotConfigured
	}
	prompt := llm.BuildExtractionPrompt(job.SourceType, job.PropertyContext, job.ContactContext, job.Transcript)
	response, err := p.generator.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction completion failed: %w", err)
	}
	return llm.ParseExtractionResponse(response), nil
}

// ProcessAndStore extracts a transcript and persists every usable memory plus
// a conversation summary. Individual memory failures are logged and skipped
// so one bad row never loses the rest. The summary write is idempotent per
// (source type, source id), which makes redelivered jobs safe.
func (p *Pipeline) ProcessAndStore(ctx context.Context, job Job) (*Result, error) {
	extraction, err := p.Extract(ctx, job)
	if err != nil {
		return nil, err
	}

	result := &Result{Extraction: extraction}

	for _, em := range extraction.Memories {
		_, err := p.memories.CreateMemory(ctx, memory.CreateMemoryInput{
			Scope:      job.Scope,
			Type:       em.Type,
			Content:    em.Content,
			SourceType: job.SourceType,
			SourceID:   job.SourceID,
			Confidence: em.Confidence,
			Importance: em.Importance,
			CreatedBy:  job.CreatedBy,
		})
		if err != nil {
			p.logger.Warn("failed to store extracted memory",
				"source_id", job.SourceID, "error", err)
			continue
		}
		result.MemoriesStored++
	}

	if job.Scope.PropertyID != "" && extraction.Summary != "" {
		occurredAt := job.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		_, created, err := p.memories.CreateConversationSummary(ctx, memory.CreateSummaryInput{
			Scope:            job.Scope,
			ConversationType: job.SourceType,
			SourceID:         job.SourceID,
			Summary:          extraction.Summary,
			KeyPoints:        extraction.KeyPoints,
			ActionItems:      extraction.ActionItems,
			Sentiment:        extraction.Sentiment,
			SentimentScore:   extraction.SentimentScore,
			FollowUpRequired: len(extraction.ActionItems) > 0,
			ConversationAt:   occurredAt,
		})
		if err != nil {
			p.logger.Warn("failed to store conversation summary",
				"source_id", job.SourceID, "error", err)
		} else {
			result.SummaryCreated = created
		}
	}

	p.logger.Info("extraction processed",
		"source_type", job.SourceType,
		"source_id", job.SourceID,
		"memories", result.MemoriesStored,
		"summary_created", result.SummaryCreated)

	return result, nil
}
