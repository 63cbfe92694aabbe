package llm

import (
	"testing"

	"github.com/liaisonhq/liaison/pkg/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantJSON string
	}{
		{
			name:     "plain JSON object",
			input:    `{"key": "value"}`,
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with markdown code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with surrounding text",
			input:    "Here is the JSON:\n{\"key\": \"value\"}\nEnd of JSON",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "nested JSON object",
			input:    `{"outer": {"inner": "value"}}`,
			wantJSON: `{"outer": {"inner": "value"}}`,
		},
		{
			name:     "escaped quotes inside string",
			input:    `{"text": "He said \"hello\""}`,
			wantJSON: `{"text": "He said \"hello\""}`,
		},
		{
			name:     "braces inside string",
			input:    `{"text": "looks like {json} inside"}`,
			wantJSON: `{"text": "looks like {json} inside"}`,
		},
		{
			name:     "no JSON present",
			input:    "just some text without json",
			wantJSON: "just some text without json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSON(tt.input)
			if got != tt.wantJSON {
				t.Errorf("extractJSON() = %q, want %q", got, tt.wantJSON)
			}
		})
	}
}

func TestParseIntentResponse(t *testing.T) {
	response := "```json\n" + `{
		"task_type": "call",
		"action": "make_call",
		"target": "John Smith",
		"purpose": "discuss the inspection",
		"requires_contact": true,
		"requires_property": true
	}` + "\n```"

	intent := ParseIntentResponse(response, "Call John about the inspection")

	if intent.TaskType != types.TaskCall {
		t.Errorf("task_type = %q, want call", intent.TaskType)
	}
	if intent.Target != "John Smith" {
		t.Errorf("target = %q, want John Smith", intent.Target)
	}
	if !intent.RequiresContact || !intent.RequiresProperty {
		t.Error("requires flags not carried through")
	}
}

func TestParseIntentResponseMalformed(t *testing.T) {
	intent := ParseIntentResponse("I can't help with that.", "Call John about the inspection")

	if intent.TaskType != types.TaskCustom {
		t.Errorf("task_type = %q, want custom fallback", intent.TaskType)
	}
	if intent.Action != "unknown" {
		t.Errorf("action = %q, want unknown", intent.Action)
	}
	if intent.Purpose != "Call John about the inspection" {
		t.Errorf("purpose = %q, want original instruction", intent.Purpose)
	}
}

func TestParseIntentResponseUnknownTaskType(t *testing.T) {
	intent := ParseIntentResponse(`{"task_type": "teleport", "action": "other"}`, "do it")

	if intent.TaskType != types.TaskCustom {
		t.Errorf("task_type = %q, want custom for unrecognized label", intent.TaskType)
	}
}

func TestParseExtractionResponse(t *testing.T) {
	response := `{
		"memories": [
			{"content": "John prefers morning calls", "memory_type": "preference", "confidence": 0.9, "importance": 0.7},
			{"content": "Will send the report Friday", "memory_type": "commitment", "confidence": 0.8, "importance": 0.9},
			{"content": "", "memory_type": "fact"}
		],
		"summary": "Discussed the inspection schedule.",
		"key_points": ["inspection timing"],
		"action_items": ["send report"],
		"sentiment": "positive",
		"sentiment_score": 0.6
	}`

	result := ParseExtractionResponse(response)

	if len(result.Memories) != 2 {
		t.Fatalf("got %d memories, want 2 (empty content dropped)", len(result.Memories))
	}
	if result.Memories[0].Type != types.MemoryPreference {
		t.Errorf("memory type = %q, want preference", result.Memories[0].Type)
	}
	if result.Memories[1].Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", result.Memories[1].Confidence)
	}
	if result.Summary != "Discussed the inspection schedule." {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.Sentiment != types.SentimentPositive {
		t.Errorf("sentiment = %q, want positive", result.Sentiment)
	}
}

func TestParseExtractionResponseMalformed(t *testing.T) {
	result := ParseExtractionResponse("The transcript was too garbled to analyze.")

	if !result.Empty() {
		t.Errorf("malformed response should yield empty result, got %+v", result)
	}
}

func TestParseExtractionResponseDefaultsAndClamping(t *testing.T) {
	response := `{
		"memories": [
			{"content": "no scores given", "memory_type": "fact"},
			{"content": "over range", "memory_type": "relationship", "confidence": 1.7, "importance": -0.2},
			{"content": "invented label", "memory_type": "observation", "confidence": 0.5, "importance": 0.5}
		]
	}`

	result := ParseExtractionResponse(response)
	if len(result.Memories) != 3 {
		t.Fatalf("got %d memories, want 3", len(result.Memories))
	}
	if result.Memories[0].Confidence != 0.8 || result.Memories[0].Importance != 0.5 {
		t.Errorf("defaults = (%v, %v), want (0.8, 0.5)",
			result.Memories[0].Confidence, result.Memories[0].Importance)
	}
	if result.Memories[1].Confidence != 1.0 || result.Memories[1].Importance != 0.0 {
		t.Errorf("clamped = (%v, %v), want (1.0, 0.0)",
			result.Memories[1].Confidence, result.Memories[1].Importance)
	}
	if result.Memories[2].Type != types.MemoryFact {
		t.Errorf("unknown label parsed to %q, want fact", result.Memories[2].Type)
	}
}
