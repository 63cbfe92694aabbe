package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaisonhq/liaison/internal/extract"
	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/internal/storage/sqlite"
	"github.com/liaisonhq/liaison/pkg/types"
)

// stubGenerator returns canned completions keyed by a recognizable prompt
// fragment, falling back to a default response.
type stubGenerator struct {
	intentJSON string
	smsBody    string
	err        error
}

func (s *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(prompt, "parses user instructions") {
		return s.intentJSON, nil
	}
	if strings.Contains(prompt, "Generate a brief, professional SMS") {
		return s.smsBody, nil
	}
	return "{}", nil
}

func (s *stubGenerator) GetModel() string { return "stub-model" }

type stubContacts struct {
	contact *types.ContactInfo
	err     error
}

func (s *stubContacts) GetContact(_ context.Context, _ string) (*types.ContactInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.contact, nil
}

type stubProperties struct {
	property *types.PropertyInfo
	err      error
}

func (s *stubProperties) GetProperty(_ context.Context, _ string) (*types.PropertyInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.property, nil
}

type stubCalls struct {
	callID string
	err    error
	placed int
	phone  string
}

func (s *stubCalls) Place(_ context.Context, phone, _, _ string) (string, error) {
	s.placed++
	s.phone = phone
	if s.err != nil {
		return "", s.err
	}
	return s.callID, nil
}

type stubMessages struct {
	smsID string
	err   error
	sent  int
	phone string
	body  string
}

func (s *stubMessages) Send(_ context.Context, phone, body string) (string, error) {
	s.sent++
	s.phone = phone
	s.body = body
	if s.err != nil {
		return "", s.err
	}
	return s.smsID, nil
}

type stubExtractor struct {
	jobs []extract.Job
	err  error
}

func (s *stubExtractor) Submit(job extract.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type orchestratorFixture struct {
	store     *sqlite.Store
	orch      *Orchestrator
	calls     *stubCalls
	messages  *stubMessages
	extractor *stubExtractor
	contacts  *stubContacts
}

func intentJSON(taskType, target, purpose string) string {
	return fmt.Sprintf(`{
		"task_type": %q,
		"action": "other",
		"target": %q,
		"purpose": %q,
		"requires_contact": true,
		"requires_property": false
	}`, taskType, target, purpose)
}

func newOrchestratorFixture(t *testing.T, gen *stubGenerator) *orchestratorFixture {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	contacts := &stubContacts{contact: &types.ContactInfo{
		ID:    "contact-1",
		Name:  "John Smith",
		Phone: "+15550001111",
	}}
	svc := memory.NewService(store, nil, nil)
	assembler := NewAssembler(svc, nil, &stubProperties{}, contacts, nil)

	calls := &stubCalls{callID: "call-abc"}
	messages := &stubMessages{smsID: "sms-abc"}
	extractor := &stubExtractor{}

	orch := NewOrchestrator(store.Tasks(), assembler, gen, calls, messages, extractor, nil)
	return &orchestratorFixture{
		store:     store,
		orch:      orch,
		calls:     calls,
		messages:  messages,
		extractor: extractor,
		contacts:  contacts,
	}
}

func TestExecuteCallGoesToWaiting(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "John Smith", "discuss the inspection")}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Call John about the inspection",
		Scope:       types.Scope{ContactID: "contact-1"},
		InitiatedBy: "user-1",
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskWaiting, task.Status)
	assert.Equal(t, "call-abc", task.CallID)
	assert.Equal(t, "Initiated call to John Smith regarding: discuss the inspection", task.ResultSummary)
	assert.Equal(t, 1, f.calls.placed)
	assert.Equal(t, "+15550001111", f.calls.phone)
	assert.Nil(t, task.CompletedAt, "waiting task is not finished")
	require.NotNil(t, task.ContextSnapshot)
	assert.Equal(t, "John Smith", task.ContextSnapshot.Contact.Name)

	steps, err := f.orch.TaskSteps(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "context_lookup", steps[0].StepType)
	assert.Equal(t, "call", steps[1].StepType)
}

func TestExecuteCallBlockedByDoNotCall(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "John Smith", "discuss the inspection")}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	prefs, err := memory.NewService(f.store, nil, nil).GetOrCreatePreferences(ctx, "contact-1")
	require.NoError(t, err)
	prefs.DoNotCall = true
	require.NoError(t, f.store.Preferences().Update(ctx, prefs))

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Call John about the inspection",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskFailed, task.Status)
	assert.Equal(t, "Contact has requested no phone calls", task.StatusMessage)
	assert.Equal(t, "do_not_call preference is set", task.LastError)
	assert.Zero(t, f.calls.placed, "gate must fire before the action")
	assert.NotNil(t, task.CompletedAt)
}

func TestExecuteSMSBlockedByDoNotText(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("sms", "John Smith", "confirm the showing")}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	prefs, err := memory.NewService(f.store, nil, nil).GetOrCreatePreferences(ctx, "contact-1")
	require.NoError(t, err)
	prefs.DoNotText = true
	require.NoError(t, f.store.Preferences().Update(ctx, prefs))

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Text John to confirm",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskFailed, task.Status)
	assert.Equal(t, "Contact has requested no text messages", task.StatusMessage)
	assert.Equal(t, "do_not_text preference is set", task.LastError)
	assert.Zero(t, f.messages.sent)
}

func TestExecutePreviewStopsAtPending(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "John Smith", "discuss the inspection")}
	f := newOrchestratorFixture(t, gen)

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "Call John about the inspection",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: false,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskPending, task.Status)
	assert.Equal(t, "Ready for execution", task.StatusMessage)
	assert.Zero(t, f.calls.placed)
	assert.Nil(t, task.CompletedAt)
	require.NotNil(t, task.ParsedIntent)
	assert.Equal(t, types.TaskCall, task.ParsedIntent.TaskType)
}

func TestExecuteCallWithoutPhoneFails(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "", "discuss the inspection")}
	f := newOrchestratorFixture(t, gen)
	f.contacts.contact.Phone = ""

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "Call them",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskFailed, task.Status)
	assert.Equal(t, "Execution failed: No phone number available", task.StatusMessage)
	assert.Equal(t, "No phone number available", task.LastError)
	assert.Zero(t, f.calls.placed)
}

func TestExecuteSMSUsesProvidedMessage(t *testing.T) {
	gen := &stubGenerator{intentJSON: `{
		"task_type": "sms",
		"action": "send_sms",
		"target": "John Smith",
		"purpose": "confirm the showing",
		"additional_context": "Hi John, confirming Saturday at 2pm.",
		"requires_contact": true
	}`}
	f := newOrchestratorFixture(t, gen)

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "Text John: Hi John, confirming Saturday at 2pm.",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskCompleted, task.Status)
	assert.Equal(t, "sms-abc", task.SMSID)
	assert.Equal(t, "Hi John, confirming Saturday at 2pm.", f.messages.body)
	assert.Equal(t, "Sent SMS to John Smith: Hi John, confirming Saturday at 2pm.", task.ResultSummary)
	assert.NotNil(t, task.CompletedAt)
}

func TestExecuteSMSDraftsMessageWithModel(t *testing.T) {
	gen := &stubGenerator{
		intentJSON: intentJSON("sms", "John Smith", "confirm the showing"),
		smsBody:    "Hi John, just confirming our showing. See you soon!",
	}
	f := newOrchestratorFixture(t, gen)

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "Text John to confirm the showing",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskCompleted, task.Status)
	assert.Equal(t, "Hi John, just confirming our showing. See you soon!", f.messages.body)
}

func TestExecuteCustomReturnsAnalysis(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("research", "", "find comparable rents nearby")}
	f := newOrchestratorFixture(t, gen)

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "What are comparable rents nearby?",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskCompleted, task.Status)
	assert.Equal(t, "Task analyzed", task.StatusMessage)
	assert.Equal(t, "Analyzed request: find comparable rents nearby", task.ResultSummary)
	assert.Contains(t, task.ResultData, "context")
}

func TestExecuteFallsBackWhenModelDown(t *testing.T) {
	gen := &stubGenerator{err: errors.New("provider down")}
	f := newOrchestratorFixture(t, gen)

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "Do the thing",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	// Intent parsing degrades to a custom task carrying the instruction.
	require.NotNil(t, task.ParsedIntent)
	assert.Equal(t, types.TaskCustom, task.ParsedIntent.TaskType)
	assert.Equal(t, "Do the thing", task.ParsedIntent.Purpose)
	assert.Equal(t, types.TaskCompleted, task.Status)
}

func TestCancelPendingTask(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "John Smith", "discuss")}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Call John",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: false,
	})
	require.NoError(t, err)

	cancelled, err := f.orch.Cancel(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)
}

func TestCancelCompletedTaskRejected(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("research", "", "analyze")}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Analyze this",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, task.Status)

	_, err = f.orch.Cancel(ctx, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOnInteractionCompletedClosesWaitingTask(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "John Smith", "discuss the inspection")}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Call John about the inspection",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)
	require.Equal(t, types.TaskWaiting, task.Status)

	done, err := f.orch.OnInteractionCompleted(ctx, task.CallID, "", "John said he will send the report Friday.")
	require.NoError(t, err)

	assert.Equal(t, types.TaskCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	require.Len(t, f.extractor.jobs, 1)
	job := f.extractor.jobs[0]
	assert.Equal(t, types.SourcePhoneCall, job.SourceType)
	assert.Equal(t, task.CallID, job.SourceID)
	assert.Equal(t, "John said he will send the report Friday.", job.Transcript)
	assert.Equal(t, "John Smith", job.ContactContext)
}

func TestOnInteractionCompletedQueuesCompletedSMSTranscript(t *testing.T) {
	gen := &stubGenerator{intentJSON: `{
		"task_type": "sms",
		"action": "send_sms",
		"target": "John Smith",
		"purpose": "confirm the showing",
		"additional_context": "Hi John, confirming Saturday at 2pm.",
		"requires_contact": true
	}`}
	f := newOrchestratorFixture(t, gen)
	ctx := context.Background()

	task, err := f.orch.Execute(ctx, ExecuteRequest{
		Instruction: "Text John: Hi John, confirming Saturday at 2pm.",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, task.Status)

	// SMS tasks complete at send time; the conversation transcript lands
	// later and must still reach extraction.
	done, err := f.orch.OnInteractionCompleted(ctx, "", task.SMSID, "John replied: sounds good, see you Saturday.")
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, done.Status)

	require.Len(t, f.extractor.jobs, 1)
	job := f.extractor.jobs[0]
	assert.Equal(t, types.SourceSMS, job.SourceType)
	assert.Equal(t, task.SMSID, job.SourceID)
	assert.Equal(t, "John replied: sounds good, see you Saturday.", job.Transcript)
}

func TestExecuteSMSSummaryTruncatesOnRunes(t *testing.T) {
	body := strings.Repeat("é", 120)
	gen := &stubGenerator{intentJSON: fmt.Sprintf(`{
		"task_type": "sms",
		"action": "send_sms",
		"target": "John Smith",
		"purpose": "confirm the showing",
		"additional_context": %q,
		"requires_contact": true
	}`, body)}
	f := newOrchestratorFixture(t, gen)

	task, err := f.orch.Execute(context.Background(), ExecuteRequest{
		Instruction: "Text John",
		Scope:       types.Scope{ContactID: "contact-1"},
		AutoExecute: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.TaskCompleted, task.Status)
	assert.Equal(t, "Sent SMS to John Smith: "+strings.Repeat("é", 100), task.ResultSummary)
}

func TestOnInteractionCompletedUnknownID(t *testing.T) {
	gen := &stubGenerator{intentJSON: intentJSON("call", "John", "x")}
	f := newOrchestratorFixture(t, gen)

	_, err := f.orch.OnInteractionCompleted(context.Background(), "call-nope", "", "transcript")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecuteRequiresInstruction(t *testing.T) {
	gen := &stubGenerator{}
	f := newOrchestratorFixture(t, gen)

	_, err := f.orch.Execute(context.Background(), ExecuteRequest{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
