package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liaisonhq/liaison/internal/extract"
	"github.com/liaisonhq/liaison/internal/llm"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// ExtractionSubmitter feeds completed interactions into the extraction queue.
type ExtractionSubmitter interface {
	Submit(job extract.Job) error
}

// ExecuteRequest is one instruction handed to the orchestrator.
type ExecuteRequest struct {
	Instruction string
	Scope       types.Scope
	InitiatedBy string

	// AutoExecute controls whether the resolved action is dispatched. When
	// false the task stops at pending with its parsed intent and context
	// snapshot attached, ready for a human to approve.
	AutoExecute bool
}

// Orchestrator drives the task state machine: parse the instruction, gather
// context, gate on contact preferences, dispatch the action, and record every
// step. Preference gates are hard stops that fire before dispatch regardless
// of auto-execute mode.
type Orchestrator struct {
	tasks     storage.TaskStore
	assembler *Assembler
	generator llm.TextGenerator // nil when no provider is configured
	calls     CallAction        // nil when telephony is not wired
	messages  MessageAction     // nil when messaging is not wired
	extractor ExtractionSubmitter
	logger    *slog.Logger
}

// NewOrchestrator creates a task orchestrator. Generator, actions, and
// extractor may each be nil; the orchestrator degrades per-capability.
func NewOrchestrator(tasks storage.TaskStore, assembler *Assembler, generator llm.TextGenerator, calls CallAction, messages MessageAction, extractor ExtractionSubmitter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tasks:     tasks,
		assembler: assembler,
		generator: generator,
		calls:     calls,
		messages:  messages,
		extractor: extractor,
		logger:    logger,
	}
}

// Execute runs one instruction end to end and returns the resulting task.
// The task row records the outcome whatever happens; Execute only returns an
// error when the task itself cannot be persisted.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*types.AgentTask, error) {
	if req.Instruction == "" {
		return nil, fmt.Errorf("%w: instruction is required", storage.ErrInvalidInput)
	}

	intent := o.parseIntent(ctx, req.Instruction)
	started := time.Now().UTC()

	task := &types.AgentTask{
		ID:           uuid.NewString(),
		InitiatedBy:  req.InitiatedBy,
		PropertyID:   req.Scope.PropertyID,
		ContactID:    req.Scope.ContactID,
		TaskType:     intent.TaskType,
		Instruction:  req.Instruction,
		ParsedIntent: intent,
		Status:       types.TaskInProgress,
		StartedAt:    &started,
	}
	if err := o.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	agentCtx := o.assembler.Build(ctx, req.Scope, intent.Purpose)
	task.ContextSnapshot = agentCtx
	o.recordStep(ctx, task, 1, "context_lookup", "Assembled context for "+string(intent.TaskType), nil)

	// Preference gates fire before anything else, preview mode included.
	if gate := checkPreferenceGate(intent, agentCtx.Preferences); gate != nil {
		task.LastError = gate.lastError
		return o.finish(ctx, task, types.TaskFailed, gate.statusMessage, started)
	}

	if !req.AutoExecute {
		return o.finish(ctx, task, types.TaskPending, "Ready for execution", started)
	}

	outcome, err := o.dispatch(ctx, task, intent, agentCtx)
	if err != nil {
		task.LastError = err.Error()
		return o.finish(ctx, task, types.TaskFailed, "Execution failed: "+err.Error(), started)
	}

	task.CallID = outcome.callID
	task.SMSID = outcome.smsID
	task.ResultSummary = outcome.summary
	task.ResultData = outcome.data
	if outcome.errMessage != "" {
		task.LastError = outcome.errMessage
		return o.finish(ctx, task, types.TaskFailed, "Execution failed: "+outcome.errMessage, started)
	}
	return o.finish(ctx, task, outcome.status, outcome.statusMessage, started)
}

// Cancel moves a pending or waiting task to cancelled. Any other state
// returns ErrInvalidTransition.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) (*types.AgentTask, error) {
	task, err := o.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !types.CanTransition(task.Status, types.TaskCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %s task", ErrInvalidTransition, task.Status)
	}
	now := time.Now().UTC()
	task.Status = types.TaskCancelled
	task.StatusMessage = "Cancelled"
	task.CompletedAt = &now
	if err := o.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// OnInteractionCompleted closes the loop for an asynchronous action: the task
// waiting on the given call or SMS id is completed and its transcript is
// queued for memory extraction. Unknown ids return storage.ErrNotFound.
func (o *Orchestrator) OnInteractionCompleted(ctx context.Context, callID, smsID, transcript string) (*types.AgentTask, error) {
	task, err := o.tasks.FindByAction(ctx, callID, smsID)
	if err != nil {
		return nil, err
	}
	// SMS tasks complete at send time, so the transcript arrives for a task
	// that is already terminal. Queue extraction without touching the row.
	if task.Status == types.TaskCompleted {
		o.queueExtraction(ctx, task, callID, transcript)
		return task, nil
	}
	if !types.CanTransition(task.Status, types.TaskCompleted) {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, task.ID, task.Status)
	}

	now := time.Now().UTC()
	task.Status = types.TaskCompleted
	task.StatusMessage = "Interaction completed"
	task.CompletedAt = &now
	if task.StartedAt != nil {
		task.ExecutionTimeMS = now.Sub(*task.StartedAt).Milliseconds()
	}
	if err := o.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	o.queueExtraction(ctx, task, callID, transcript)
	return task, nil
}

// queueExtraction submits the transcript for extraction, best-effort.
func (o *Orchestrator) queueExtraction(ctx context.Context, task *types.AgentTask, callID, transcript string) {
	if o.extractor == nil || transcript == "" {
		return
	}

	sourceType := types.SourceSMS
	sourceID := task.SMSID
	if callID != "" {
		sourceType = types.SourcePhoneCall
		sourceID = task.CallID
	}

	job := extract.Job{
		Scope:      task.Scope(),
		SourceType: sourceType,
		SourceID:   sourceID,
		Transcript: transcript,
		OccurredAt: time.Now().UTC(),
		CreatedBy:  "agent",
	}
	if snap := task.ContextSnapshot; snap != nil {
		if snap.Property != nil {
			job.PropertyContext = snap.Property.Name
		}
		if snap.Contact != nil {
			job.ContactContext = snap.Contact.Name
		}
	}

	if err := o.extractor.Submit(job); err != nil {
		o.logger.Error("failed to queue extraction", "task_id", task.ID, "error", err)
		return
	}
	o.recordStep(ctx, task, 3, "memory_extract", "Queued transcript for extraction", nil)
}

// GetTask retrieves a task by id.
func (o *Orchestrator) GetTask(ctx context.Context, id string) (*types.AgentTask, error) {
	return o.tasks.Get(ctx, id)
}

// ListTasks retrieves tasks matching the filter.
func (o *Orchestrator) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]types.AgentTask, error) {
	return o.tasks.List(ctx, filter)
}

// TaskSteps returns a task's audit ledger.
func (o *Orchestrator) TaskSteps(ctx context.Context, taskID string) ([]types.AgentTaskStep, error) {
	return o.tasks.Steps(ctx, taskID)
}

// parseIntent turns the instruction into a structured intent. A model outage
// degrades to a custom-task intent carrying the raw instruction.
func (o *Orchestrator) parseIntent(ctx context.Context, instruction string) *types.Intent {
	if o.generator == nil {
		return llm.ParseIntentResponse("", instruction)
	}
	response, err := o.generator.Complete(ctx, llm.BuildIntentPrompt(instruction))
	if err != nil {
		o.logger.Warn("intent parsing failed, falling back to custom task", "error", err)
		return llm.ParseIntentResponse("", instruction)
	}
	return llm.ParseIntentResponse(response, instruction)
}

// preferenceGate describes a blocked action.
type preferenceGate struct {
	statusMessage string
	lastError     string
}

// checkPreferenceGate enforces the hard do-not-contact stops.
func checkPreferenceGate(intent *types.Intent, prefs *types.ContactPreference) *preferenceGate {
	if prefs == nil {
		return nil
	}
	if intent.TaskType == types.TaskCall && prefs.DoNotCall {
		return &preferenceGate{
			statusMessage: "Contact has requested no phone calls",
			lastError:     "do_not_call preference is set",
		}
	}
	if intent.TaskType == types.TaskSMS && prefs.DoNotText {
		return &preferenceGate{
			statusMessage: "Contact has requested no text messages",
			lastError:     "do_not_text preference is set",
		}
	}
	return nil
}

// finish transitions the task to its resulting status, stamps timing, and
// persists the row.
func (o *Orchestrator) finish(ctx context.Context, task *types.AgentTask, status types.TaskStatus, statusMessage string, started time.Time) (*types.AgentTask, error) {
	now := time.Now().UTC()
	task.Status = status
	task.StatusMessage = statusMessage
	task.ExecutionTimeMS = now.Sub(started).Milliseconds()
	if status.Terminal() {
		task.CompletedAt = &now
	}
	if err := o.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// recordStep appends to the task's audit ledger, best-effort.
func (o *Orchestrator) recordStep(ctx context.Context, task *types.AgentTask, number int, stepType, description string, output map[string]interface{}) {
	now := time.Now().UTC()
	step := &types.AgentTaskStep{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		StepNumber:  number,
		StepType:    stepType,
		Description: description,
		Status:      types.TaskCompleted,
		Output:      output,
		StartedAt:   &now,
		CompletedAt: &now,
	}
	if err := o.tasks.AddStep(ctx, step); err != nil {
		o.logger.Warn("failed to record task step", "task_id", task.ID, "error", err)
	}
}
