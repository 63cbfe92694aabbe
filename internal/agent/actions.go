package agent

import (
	"context"
	"fmt"

	"github.com/liaisonhq/liaison/internal/llm"
	"github.com/liaisonhq/liaison/pkg/types"
)

// actionOutcome is what one dispatched action resolved to. A non-empty
// errMessage marks a business-level failure (no phone number, etc.) as
// opposed to a transport error.
type actionOutcome struct {
	status        types.TaskStatus
	statusMessage string
	summary       string
	data          map[string]interface{}
	callID        string
	smsID         string
	errMessage    string
}

// dispatch routes the intent to its action handler. Anything that is not a
// call or SMS resolves as a custom analysis task.
func (o *Orchestrator) dispatch(ctx context.Context, task *types.AgentTask, intent *types.Intent, agentCtx *types.AgentContext) (*actionOutcome, error) {
	switch intent.TaskType {
	case types.TaskCall:
		return o.executeCall(ctx, task, intent, agentCtx)
	case types.TaskSMS:
		return o.executeSMS(ctx, task, intent, agentCtx)
	default:
		return o.executeCustom(ctx, task, intent, agentCtx)
	}
}

// executeCall places an outbound call. The task parks in waiting until the
// call provider reports completion through OnInteractionCompleted.
func (o *Orchestrator) executeCall(ctx context.Context, task *types.AgentTask, intent *types.Intent, agentCtx *types.AgentContext) (*actionOutcome, error) {
	if o.calls == nil {
		return nil, ErrActionUnavailable
	}

	phone := contactPhone(agentCtx, intent)
	if phone == "" {
		return &actionOutcome{errMessage: "No phone number available"}, nil
	}

	callID, err := o.calls.Place(ctx, phone, intent.Purpose, FormatPrompt(agentCtx))
	if err != nil {
		return nil, fmt.Errorf("call placement failed: %w", err)
	}

	name := contactName(agentCtx, intent, phone)
	o.recordStep(ctx, task, 2, "call", "Placed call to "+phone,
		map[string]interface{}{"call_id": callID, "phone": phone})

	return &actionOutcome{
		status:        types.TaskWaiting,
		statusMessage: "Call in progress",
		summary:       fmt.Sprintf("Initiated call to %s regarding: %s", name, intent.Purpose),
		data:          map[string]interface{}{"call_id": callID, "phone": phone},
		callID:        callID,
	}, nil
}

// executeSMS sends a text message, drafting the body with the model when the
// instruction did not include one.
func (o *Orchestrator) executeSMS(ctx context.Context, task *types.AgentTask, intent *types.Intent, agentCtx *types.AgentContext) (*actionOutcome, error) {
	if o.messages == nil {
		return nil, ErrActionUnavailable
	}

	phone := contactPhone(agentCtx, intent)
	if phone == "" {
		return &actionOutcome{errMessage: "No phone number available"}, nil
	}

	body := intent.AdditionalContext
	if body == "" {
		if o.generator == nil {
			return nil, fmt.Errorf("%w: no message text and no model to draft one", ErrActionUnavailable)
		}
		drafted, err := o.generator.Complete(ctx, llm.BuildSMSPrompt(FormatPrompt(agentCtx), intent.Purpose))
		if err != nil {
			return nil, fmt.Errorf("message drafting failed: %w", err)
		}
		body = drafted
	}

	smsID, err := o.messages.Send(ctx, phone, body)
	if err != nil {
		return nil, fmt.Errorf("message send failed: %w", err)
	}

	name := contactName(agentCtx, intent, phone)
	o.recordStep(ctx, task, 2, "sms", "Sent SMS to "+phone,
		map[string]interface{}{"sms_id": smsID, "phone": phone})

	return &actionOutcome{
		status:        types.TaskCompleted,
		statusMessage: "Message sent",
		summary:       fmt.Sprintf("Sent SMS to %s: %s", name, truncate(body, 100)),
		data:          map[string]interface{}{"sms_id": smsID, "phone": phone, "message": body},
		smsID:         smsID,
	}, nil
}

// executeCustom resolves instructions that map to no concrete action by
// returning the assembled context and parsed intent for the caller to act on.
func (o *Orchestrator) executeCustom(ctx context.Context, task *types.AgentTask, intent *types.Intent, agentCtx *types.AgentContext) (*actionOutcome, error) {
	o.recordStep(ctx, task, 2, "custom", "Analyzed instruction", nil)
	return &actionOutcome{
		status:        types.TaskCompleted,
		statusMessage: "Task analyzed",
		summary:       "Analyzed request: " + intent.Purpose,
		data: map[string]interface{}{
			"context": FormatPrompt(agentCtx),
			"intent":  intent,
		},
	}, nil
}

// contactPhone resolves the number to dial: the directory contact's phone
// when known, otherwise whatever the intent targeted.
func contactPhone(agentCtx *types.AgentContext, intent *types.Intent) string {
	if agentCtx.Contact != nil && agentCtx.Contact.Phone != "" {
		return agentCtx.Contact.Phone
	}
	return intent.Target
}

// contactName resolves a display name for result summaries.
func contactName(agentCtx *types.AgentContext, intent *types.Intent, fallback string) string {
	if agentCtx.Contact != nil && agentCtx.Contact.Name != "" {
		return agentCtx.Contact.Name
	}
	if intent.Target != "" {
		return intent.Target
	}
	return fallback
}

// truncate caps a string at n runes so multi-byte text never ends up with a
// split character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
