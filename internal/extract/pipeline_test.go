package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/internal/storage/sqlite"
	"github.com/liaisonhq/liaison/pkg/types"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubGenerator) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) GetModel() string { return "stub-model" }

const extractionResponse = `{
	"memories": [
		{"content": "John prefers morning calls", "memory_type": "preference", "confidence": 0.9, "importance": 0.7},
		{"content": "Will send the inspection report Friday", "memory_type": "commitment", "confidence": 0.85, "importance": 0.9}
	],
	"summary": "Discussed the inspection schedule and report delivery.",
	"key_points": ["inspection timing", "report delivery"],
	"action_items": ["send report Friday"],
	"sentiment": "positive",
	"sentiment_score": 0.6
}`

func newPipelineFixture(t *testing.T, gen *stubGenerator) (*Pipeline, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := memory.NewService(store, nil, nil)
	return NewPipeline(gen, svc, nil), store
}

func callJob() Job {
	return Job{
		Scope:      types.Scope{PropertyID: "prop-1", ContactID: "contact-1"},
		SourceType: types.SourcePhoneCall,
		SourceID:   "call-1",
		Transcript: "John: I'll send the inspection report Friday. Mornings work best for calls.",
		OccurredAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		CreatedBy:  "agent",
	}
}

func TestProcessAndStorePersistsMemoriesAndSummary(t *testing.T) {
	gen := &stubGenerator{response: extractionResponse}
	pipeline, store := newPipelineFixture(t, gen)
	ctx := context.Background()

	result, err := pipeline.ProcessAndStore(ctx, callJob())
	require.NoError(t, err)

	assert.Equal(t, 2, result.MemoriesStored)
	assert.True(t, result.SummaryCreated)

	memories, err := store.Memories().List(ctx, storage.MemoryFilter{
		Scope: types.Scope{PropertyID: "prop-1"},
	})
	require.NoError(t, err)
	require.Len(t, memories, 2)
	for _, m := range memories {
		assert.Equal(t, types.SourcePhoneCall, m.SourceType)
		assert.Equal(t, "call-1", m.SourceID)
	}

	summaries, err := store.Conversations().Recent(ctx, types.Scope{PropertyID: "prop-1"}, 5)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Discussed the inspection schedule and report delivery.", summaries[0].Summary)
	assert.Equal(t, []string{"inspection timing", "report delivery"}, summaries[0].KeyPoints)
	assert.Empty(t, summaries[0].Topics, "extraction does not produce topics")
	assert.True(t, summaries[0].FollowUpRequired, "action items imply follow-up")
}

func TestProcessAndStoreIsIdempotentPerSource(t *testing.T) {
	gen := &stubGenerator{response: extractionResponse}
	pipeline, store := newPipelineFixture(t, gen)
	ctx := context.Background()

	_, err := pipeline.ProcessAndStore(ctx, callJob())
	require.NoError(t, err)

	// Redelivery stores more memory rows (memories are additive evidence)
	// but never a second summary.
	result, err := pipeline.ProcessAndStore(ctx, callJob())
	require.NoError(t, err)
	assert.False(t, result.SummaryCreated)

	summaries, err := store.Conversations().Recent(ctx, types.Scope{PropertyID: "prop-1"}, 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestProcessAndStoreSkipsSummaryWithoutProperty(t *testing.T) {
	gen := &stubGenerator{response: extractionResponse}
	pipeline, store := newPipelineFixture(t, gen)
	ctx := context.Background()

	job := callJob()
	job.Scope = types.Scope{ContactID: "contact-1"}

	result, err := pipeline.ProcessAndStore(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MemoriesStored)
	assert.False(t, result.SummaryCreated)

	summaries, err := store.Conversations().Recent(ctx, types.Scope{ContactID: "contact-1"}, 5)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestProcessAndStoreMalformedResponse(t *testing.T) {
	gen := &stubGenerator{response: "The transcript was too garbled to analyze."}
	pipeline, _ := newPipelineFixture(t, gen)

	result, err := pipeline.ProcessAndStore(context.Background(), callJob())
	require.NoError(t, err, "a malformed model response is not an error")
	assert.Zero(t, result.MemoriesStored)
	assert.False(t, result.SummaryCreated)
}

func TestExtractPropagatesTransportError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("provider down")}
	pipeline, _ := newPipelineFixture(t, gen)

	_, err := pipeline.ProcessAndStore(context.Background(), callJob())
	assert.Error(t, err)
}

func TestQueueProcessesSubmittedJobs(t *testing.T) {
	gen := &stubGenerator{response: extractionResponse}
	pipeline, store := newPipelineFixture(t, gen)

	queue := NewQueue(pipeline, QueueConfig{Size: 4, Workers: 1}, nil)
	queue.Start(context.Background())

	require.NoError(t, queue.Submit(callJob()))
	queue.Stop()

	summaries, err := store.Conversations().Recent(context.Background(), types.Scope{PropertyID: "prop-1"}, 5)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	gen := &stubGenerator{response: extractionResponse}
	pipeline, _ := newPipelineFixture(t, gen)

	// Never started, so nothing drains the channel.
	queue := NewQueue(pipeline, QueueConfig{Size: 1, Workers: 1}, nil)
	require.NoError(t, queue.Submit(callJob()))
	assert.ErrorIs(t, queue.Submit(callJob()), ErrQueueFull)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	gen := &stubGenerator{response: extractionResponse}
	pipeline, _ := newPipelineFixture(t, gen)

	queue := NewQueue(pipeline, QueueConfig{Size: 1, Workers: 1}, nil)
	queue.Start(context.Background())
	queue.Stop()
	assert.ErrorIs(t, queue.Submit(callJob()), ErrQueueClosed)
}
