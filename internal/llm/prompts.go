package llm

import (
	"fmt"
	"strings"

	"github.com/liaisonhq/liaison/pkg/types"
)

// intentParsingPrompt instructs the model to turn a natural-language
// instruction into a structured intent.
const intentParsingPrompt = `You are an AI assistant that parses user instructions into structured actions.

Given an instruction, identify:
1. task_type: One of "call", "sms", "follow_up", "research", "schedule", "custom"
2. action: The specific action to take
3. target: Who/what is the target (contact name, phone number, etc.)
4. purpose: The purpose or goal of the action
5. additional_context: Any additional context or requirements

Respond in JSON format only:
{
    "task_type": "call|sms|follow_up|research|schedule|custom",
    "action": "make_call|send_sms|lookup_info|schedule_meeting|other",
    "target": "contact name or identifier",
    "purpose": "brief description of purpose",
    "additional_context": "any other relevant details",
    "requires_contact": true/false,
    "requires_property": true/false
}`

// extractionSystemPrompt instructs the model to pull structured memories out
// of an interaction transcript.
const extractionSystemPrompt = `You are an AI assistant that extracts structured information from conversation transcripts.

Your task is to analyze the conversation and extract:
1. FACTS: Concrete facts learned about the contact or property
   Examples: "John prefers morning calls", "Property has 3 bedrooms", "Wife's name is Sarah"

2. PREFERENCES: Communication or scheduling preferences
   Examples: "Prefers text over calls", "Available only on weekdays", "Speaks Spanish"

3. COMMITMENTS: Things someone committed to doing
   Examples: "Will send inspection report by Friday", "Promised to call back next week"

4. CONTEXT: Important context for future interactions
   Examples: "Currently dealing with tenant issues", "Planning to sell in 6 months"

For each extracted memory, provide:
- content: The memory in a clear, concise sentence
- memory_type: One of "fact", "preference", "commitment", "context"
- confidence: 0.0-1.0 how confident you are this is accurate
- importance: 0.0-1.0 how important this is for future interactions

Also provide:
- summary: A brief summary of the conversation (2-3 sentences)
- key_points: List of main topics discussed
- action_items: List of action items or follow-ups needed
- sentiment: "positive", "negative", or "neutral"
- sentiment_score: -1.0 to 1.0 (negative to positive)

Respond in JSON format only.`

// BuildIntentPrompt assembles the full intent-parsing prompt for one
// instruction.
func BuildIntentPrompt(instruction string) string {
	return intentParsingPrompt + "\n\nInstruction:\n" + instruction
}

// BuildExtractionPrompt assembles the full extraction prompt for one
// transcript. Property and contact context strings may be empty.
func BuildExtractionPrompt(sourceType types.SourceType, propertyContext, contactContext, transcript string) string {
	if propertyContext == "" {
		propertyContext = "Not specified"
	}
	if contactContext == "" {
		contactContext = "Not specified"
	}

	var b strings.Builder
	b.WriteString(extractionSystemPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Analyze this %s transcript and extract all relevant memories.\n\n", sourceType.Label())
	fmt.Fprintf(&b, "Context:\n- Property: %s\n- Contact: %s\n\n", propertyContext, contactContext)
	fmt.Fprintf(&b, "Transcript:\n%s\n\n", transcript)
	b.WriteString(`Respond with a JSON object containing:
{
    "memories": [
        {
            "content": "string",
            "memory_type": "fact|preference|commitment|context",
            "confidence": 0.0-1.0,
            "importance": 0.0-1.0
        }
    ],
    "summary": "string",
    "key_points": ["string"],
    "action_items": ["string"],
    "sentiment": "positive|negative|neutral",
    "sentiment_score": -1.0 to 1.0
}`)
	return b.String()
}

// BuildSMSPrompt assembles the prompt used to draft an outbound text message
// when the instruction did not include one.
func BuildSMSPrompt(contextPrompt, purpose string) string {
	if purpose == "" {
		purpose = "general communication"
	}
	return fmt.Sprintf(`Generate a brief, professional SMS message.

Context:
%s

Purpose: %s

Requirements:
- Keep it under 160 characters if possible
- Be friendly but professional
- Reference relevant context if appropriate
- Include a clear call-to-action if needed

Generate only the message text, no quotes or explanation.`, contextPrompt, purpose)
}
