package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// TaskStore implements storage.TaskStore using PostgreSQL.
type TaskStore struct {
	db *sql.DB
}

const taskColumns = `
	id, initiated_by, property_id, contact_id, task_type, instruction,
	parsed_intent, status, status_message, context_snapshot,
	result_summary, result_data, call_id, sms_id,
	started_at, completed_at, execution_time_ms,
	retry_count, max_retries, last_error, created_at, updated_at`

// Create persists a new task row.
func (s *TaskStore) Create(ctx context.Context, task *types.AgentTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task ID is required", storage.ErrInvalidInput)
	}
	if task.Instruction == "" {
		return fmt.Errorf("%w: task instruction is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.Status == "" {
		task.Status = types.TaskPending
	}
	if task.TaskType == "" {
		task.TaskType = types.TaskCustom
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = 3
	}

	intentJSON, err := marshalJSON(task.ParsedIntent)
	if err != nil {
		return fmt.Errorf("failed to marshal parsed_intent: %w", err)
	}
	snapshotJSON, err := marshalJSON(task.ContextSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal context_snapshot: %w", err)
	}
	resultJSON, err := marshalJSON(task.ResultData)
	if err != nil {
		return fmt.Errorf("failed to marshal result_data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_tasks (
			id, initiated_by, property_id, contact_id, task_type, instruction,
			parsed_intent, status, status_message, context_snapshot,
			result_summary, result_data, call_id, sms_id,
			started_at, completed_at, execution_time_ms,
			retry_count, max_retries, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		task.ID, task.InitiatedBy, nullString(task.PropertyID), nullString(task.ContactID),
		string(task.TaskType), task.Instruction,
		intentJSON, string(task.Status), nullString(task.StatusMessage), snapshotJSON,
		nullString(task.ResultSummary), resultJSON, nullString(task.CallID), nullString(task.SMSID),
		nullTime(task.StartedAt), nullTime(task.CompletedAt), task.ExecutionTimeMS,
		task.RetryCount, task.MaxRetries, nullString(task.LastError),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID.
func (s *TaskStore) Get(ctx context.Context, id string) (*types.AgentTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+taskColumns+` FROM agent_tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Update rewrites a task row.
func (s *TaskStore) Update(ctx context.Context, task *types.AgentTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task ID is required", storage.ErrInvalidInput)
	}

	task.UpdatedAt = time.Now().UTC()

	intentJSON, err := marshalJSON(task.ParsedIntent)
	if err != nil {
		return fmt.Errorf("failed to marshal parsed_intent: %w", err)
	}
	snapshotJSON, err := marshalJSON(task.ContextSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal context_snapshot: %w", err)
	}
	resultJSON, err := marshalJSON(task.ResultData)
	if err != nil {
		return fmt.Errorf("failed to marshal result_data: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE agent_tasks SET
			task_type = $1, parsed_intent = $2, status = $3, status_message = $4,
			context_snapshot = $5, result_summary = $6, result_data = $7,
			call_id = $8, sms_id = $9, started_at = $10, completed_at = $11,
			execution_time_ms = $12, retry_count = $13, max_retries = $14,
			last_error = $15, updated_at = $16
		WHERE id = $17`,
		string(task.TaskType), intentJSON, string(task.Status), nullString(task.StatusMessage),
		snapshotJSON, nullString(task.ResultSummary), resultJSON,
		nullString(task.CallID), nullString(task.SMSID),
		nullTime(task.StartedAt), nullTime(task.CompletedAt),
		task.ExecutionTimeMS, task.RetryCount, task.MaxRetries,
		nullString(task.LastError), task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireRow(result)
}

// List retrieves tasks matching the filter, newest first.
func (s *TaskStore) List(ctx context.Context, filter storage.TaskFilter) ([]types.AgentTask, error) {
	filter.Normalize()

	query := `SELECT` + taskColumns + ` FROM agent_tasks WHERE 1=1`
	var args []interface{}
	if filter.Scope.PropertyID != "" {
		args = append(args, filter.Scope.PropertyID)
		query += fmt.Sprintf(` AND property_id = $%d`, len(args))
	}
	if filter.Scope.ContactID != "" {
		args = append(args, filter.Scope.ContactID)
		query += fmt.Sprintf(` AND contact_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.TaskType != "" {
		args = append(args, string(filter.TaskType))
		query += fmt.Sprintf(` AND task_type = $%d`, len(args))
	}
	if filter.InitiatedBy != "" {
		args = append(args, filter.InitiatedBy)
		query += fmt.Sprintf(` AND initiated_by = $%d`, len(args))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.AgentTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tasks, nil
}

// FindByAction looks a task up by the external call or SMS id linked to it.
func (s *TaskStore) FindByAction(ctx context.Context, callID, smsID string) (*types.AgentTask, error) {
	var row *sql.Row
	switch {
	case callID != "":
		row = s.db.QueryRowContext(ctx, `SELECT`+taskColumns+` FROM agent_tasks WHERE call_id = $1`, callID)
	case smsID != "":
		row = s.db.QueryRowContext(ctx, `SELECT`+taskColumns+` FROM agent_tasks WHERE sms_id = $1`, smsID)
	default:
		return nil, fmt.Errorf("%w: call or SMS id is required", storage.ErrInvalidInput)
	}

	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task by action: %w", err)
	}
	return task, nil
}

// AddStep appends a step to a task's audit ledger.
func (s *TaskStore) AddStep(ctx context.Context, step *types.AgentTaskStep) error {
	if step == nil || step.ID == "" || step.TaskID == "" {
		return fmt.Errorf("%w: step and task IDs are required", storage.ErrInvalidInput)
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	if step.Status == "" {
		step.Status = types.TaskPending
	}

	inputJSON, err := marshalJSON(step.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal step input: %w", err)
	}
	outputJSON, err := marshalJSON(step.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal step output: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_task_steps (
			id, task_id, step_number, step_type, description, status,
			input, output, error_message, started_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		step.ID, step.TaskID, step.StepNumber, step.StepType, step.Description,
		string(step.Status), inputJSON, outputJSON, nullString(step.ErrorMessage),
		nullTime(step.StartedAt), nullTime(step.CompletedAt), step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task step: %w", err)
	}
	return nil
}

// Steps returns a task's steps ordered by step_number.
func (s *TaskStore) Steps(ctx context.Context, taskID string) ([]types.AgentTaskStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, step_number, step_type, description, status,
			input, output, error_message, started_at, completed_at, created_at
		FROM agent_task_steps WHERE task_id = $1 ORDER BY step_number`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task steps: %w", err)
	}
	defer rows.Close()

	var steps []types.AgentTaskStep
	for rows.Next() {
		var step types.AgentTaskStep
		var inputJSON, outputJSON, errorMessage sql.NullString
		var startedAt, completedAt sql.NullTime
		var status string

		err := rows.Scan(
			&step.ID, &step.TaskID, &step.StepNumber, &step.StepType, &step.Description,
			&status, &inputJSON, &outputJSON, &errorMessage,
			&startedAt, &completedAt, &step.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task step row: %w", err)
		}

		step.Status = types.TaskStatus(status)
		step.ErrorMessage = errorMessage.String
		if startedAt.Valid {
			t := startedAt.Time
			step.StartedAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time
			step.CompletedAt = &t
		}
		if err := unmarshalJSON(inputJSON, &step.Input); err != nil {
			return nil, fmt.Errorf("unmarshal step input: %w", err)
		}
		if err := unmarshalJSON(outputJSON, &step.Output); err != nil {
			return nil, fmt.Errorf("unmarshal step output: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return steps, nil
}

// Compile-time assertion.
var _ storage.TaskStore = (*TaskStore)(nil)

// scanTask reads one row in taskColumns order.
func scanTask(row rowScanner) (*types.AgentTask, error) {
	var task types.AgentTask
	var propertyID, contactID, statusMessage, resultSummary sql.NullString
	var callID, smsID, lastError sql.NullString
	var intentJSON, snapshotJSON, resultJSON sql.NullString
	var startedAt, completedAt sql.NullTime
	var executionTimeMS sql.NullInt64
	var taskType, status string

	err := row.Scan(
		&task.ID, &task.InitiatedBy, &propertyID, &contactID, &taskType, &task.Instruction,
		&intentJSON, &status, &statusMessage, &snapshotJSON,
		&resultSummary, &resultJSON, &callID, &smsID,
		&startedAt, &completedAt, &executionTimeMS,
		&task.RetryCount, &task.MaxRetries, &lastError,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.TaskType = types.TaskType(taskType)
	task.Status = types.TaskStatus(status)
	task.PropertyID = propertyID.String
	task.ContactID = contactID.String
	task.StatusMessage = statusMessage.String
	task.ResultSummary = resultSummary.String
	task.CallID = callID.String
	task.SMSID = smsID.String
	task.LastError = lastError.String
	if executionTimeMS.Valid {
		task.ExecutionTimeMS = executionTimeMS.Int64
	}
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if err := unmarshalJSON(intentJSON, &task.ParsedIntent); err != nil {
		return nil, fmt.Errorf("unmarshal parsed_intent: %w", err)
	}
	if err := unmarshalJSON(snapshotJSON, &task.ContextSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal context_snapshot: %w", err)
	}
	if err := unmarshalJSON(resultJSON, &task.ResultData); err != nil {
		return nil, fmt.Errorf("unmarshal result_data: %w", err)
	}

	return &task, nil
}
