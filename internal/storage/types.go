package storage

import (
	"errors"

	"github.com/liaisonhq/liaison/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// MemoryFilter selects memories for list and candidate queries.
type MemoryFilter struct {
	// Scope restricts results to a property and/or contact. Empty fields
	// are unconstrained.
	Scope types.Scope

	// Types restricts results to the given memory types. Nil means all.
	Types []types.MemoryType

	// Status filters by lifecycle status (default: active).
	Status types.MemoryStatus

	// Limit is the maximum number of rows (default: 50, max: 200).
	Limit int

	// Offset is the number of rows to skip.
	Offset int
}

// Normalize applies defaults and caps to the filter.
func (f *MemoryFilter) Normalize() {
	if f.Status == "" {
		f.Status = types.MemoryActive
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// TaskFilter selects agent tasks for list queries.
type TaskFilter struct {
	Scope       types.Scope
	Status      types.TaskStatus
	TaskType    types.TaskType
	InitiatedBy string
	Limit       int
	Offset      int
}

// Normalize applies defaults and caps to the filter.
func (f *TaskFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
