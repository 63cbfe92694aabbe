package types

import "time"

// TaskStatus is the execution status of an agent task. Transitions are
// one-directional and driven exclusively by the orchestrator; see
// CanTransition for the full graph.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskWaiting    TaskStatus = "waiting" // Waiting for an external event (call to end, etc.)
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// CanTransition reports whether a task may move from one status to another.
//
//	pending     → in_progress, failed, cancelled
//	in_progress → pending, waiting, completed, failed
//	waiting     → completed, failed, cancelled
//
// pending → failed covers the preference gate firing in preview mode, and
// in_progress → pending is the preview demotion ("ready for execution").
// No other state is ever revisited.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskInProgress || to == TaskFailed || to == TaskCancelled
	case TaskInProgress:
		return to == TaskPending || to == TaskWaiting || to == TaskCompleted || to == TaskFailed
	case TaskWaiting:
		return to == TaskCompleted || to == TaskFailed || to == TaskCancelled
	default:
		return false
	}
}

// TaskType classifies what kind of action an instruction resolves to.
type TaskType string

const (
	TaskCall     TaskType = "call"
	TaskSMS      TaskType = "sms"
	TaskEmail    TaskType = "email"
	TaskResearch TaskType = "research"
	TaskSchedule TaskType = "schedule"
	TaskFollowUp TaskType = "follow_up"
	TaskCustom   TaskType = "custom"
)

// ParseTaskType maps a raw string to a TaskType, defaulting to TaskCustom so
// an unexpected model label never aborts a task.
func ParseTaskType(s string) TaskType {
	switch TaskType(s) {
	case TaskCall, TaskSMS, TaskEmail, TaskResearch, TaskSchedule, TaskFollowUp:
		return TaskType(s)
	}
	return TaskCustom
}

// Intent is the structured form of a natural-language instruction as parsed
// by the language model.
type Intent struct {
	TaskType          TaskType `json:"task_type"`
	Action            string   `json:"action"`
	Target            string   `json:"target,omitempty"`
	Purpose           string   `json:"purpose,omitempty"`
	AdditionalContext string   `json:"additional_context,omitempty"`
	RequiresContact   bool     `json:"requires_contact"`
	RequiresProperty  bool     `json:"requires_property"`
}

// AgentTask is one run of the orchestrator for one instruction.
type AgentTask struct {
	ID          string `json:"id"`
	InitiatedBy string `json:"initiated_by"`

	// Optional scope.
	PropertyID string `json:"property_id,omitempty"`
	ContactID  string `json:"contact_id,omitempty"`

	TaskType     TaskType `json:"task_type"`
	Instruction  string   `json:"instruction"`
	ParsedIntent *Intent  `json:"parsed_intent,omitempty"`

	Status        TaskStatus `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`

	// ContextSnapshot is the AgentContext used at execution time, captured
	// for audit. It is a point-in-time read, not a lock.
	ContextSnapshot *AgentContext `json:"context_snapshot,omitempty"`

	ResultSummary string                 `json:"result_summary,omitempty"`
	ResultData    map[string]interface{} `json:"result_data,omitempty"`

	// External action resources created by this task.
	CallID string `json:"call_id,omitempty"`
	SMSID  string `json:"sms_id,omitempty"`

	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExecutionTimeMS int64      `json:"execution_time_ms,omitempty"`

	// Retry bookkeeping. Persisted for operators; the orchestrator performs
	// no automatic retries.
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope returns the task's (property, contact) scope.
func (t *AgentTask) Scope() Scope {
	return Scope{PropertyID: t.PropertyID, ContactID: t.ContactID}
}

// AgentTaskStep is one ordered step of a task (context lookup, action call,
// extraction). Kept as an audit sub-ledger; not required for correctness.
type AgentTaskStep struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`

	StepNumber  int    `json:"step_number"`
	StepType    string `json:"step_type"` // "context_lookup", "call", "sms", "memory_extract"
	Description string `json:"description"`

	Status TaskStatus `json:"status"`

	Input        map[string]interface{} `json:"input,omitempty"`
	Output       map[string]interface{} `json:"output,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
