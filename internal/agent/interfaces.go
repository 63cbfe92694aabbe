// Package agent implements the context assembler and the task orchestrator:
// the read side that gathers everything known about a scope into one payload,
// and the write side that turns a natural-language instruction into a gated,
// audited action.
package agent

import (
	"context"
	"errors"

	"github.com/liaisonhq/liaison/pkg/types"
)

var (
	// ErrActionUnavailable is returned when a task needs an external action
	// (telephony, messaging) that has no provider wired in.
	ErrActionUnavailable = errors.New("action provider unavailable")

	// ErrInvalidTransition is returned when a task status change violates
	// the state machine, e.g. cancelling a completed task.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// PropertyDirectory looks up property details from the surrounding business
// application. A directory failure degrades context assembly, never execution.
type PropertyDirectory interface {
	GetProperty(ctx context.Context, id string) (*types.PropertyInfo, error)
}

// ContactDirectory looks up contact details from the surrounding business
// application.
type ContactDirectory interface {
	GetContact(ctx context.Context, id string) (*types.ContactInfo, error)
}

// CallAction places an outbound phone call and returns the provider's call
// id. The call completes asynchronously; OnInteractionCompleted closes the
// loop when the transcript arrives.
type CallAction interface {
	Place(ctx context.Context, phone, purpose, contextPrompt string) (callID string, err error)
}

// MessageAction sends an outbound SMS and returns the provider's message id.
type MessageAction interface {
	Send(ctx context.Context, phone, body string) (smsID string, err error)
}
