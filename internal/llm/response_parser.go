package llm

import (
	"encoding/json"
	"strings"

	"github.com/liaisonhq/liaison/pkg/types"
)

// extractJSON extracts a JSON object from LLM response text, which may be
// wrapped in markdown code blocks or surrounded by prose.
func extractJSON(text string) string {
	// Remove common markdown code block markers
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // No JSON found, return as-is and let parser fail
	}

	// Find the matching closing brace, skipping braces inside strings.
	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // No complete JSON found, return as-is
}

// rawIntent mirrors the JSON shape the intent-parsing prompt asks for.
type rawIntent struct {
	TaskType          string `json:"task_type"`
	Action            string `json:"action"`
	Target            string `json:"target"`
	Purpose           string `json:"purpose"`
	AdditionalContext string `json:"additional_context"`
	RequiresContact   bool   `json:"requires_contact"`
	RequiresProperty  bool   `json:"requires_property"`
}

// ParseIntentResponse parses the model's intent JSON. A malformed response
// degrades to a custom-task intent carrying the original instruction as its
// purpose, so a confused model never blocks execution.
func ParseIntentResponse(response, instruction string) *types.Intent {
	fallback := &types.Intent{
		TaskType: types.TaskCustom,
		Action:   "unknown",
		Purpose:  instruction,
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(extractJSON(response)), &raw); err != nil {
		return fallback
	}

	intent := &types.Intent{
		TaskType:          types.ParseTaskType(raw.TaskType),
		Action:            raw.Action,
		Target:            raw.Target,
		Purpose:           raw.Purpose,
		AdditionalContext: raw.AdditionalContext,
		RequiresContact:   raw.RequiresContact,
		RequiresProperty:  raw.RequiresProperty,
	}
	if intent.Action == "" {
		intent.Action = "unknown"
	}
	if intent.Purpose == "" {
		intent.Purpose = instruction
	}
	return intent
}

// rawExtraction mirrors the JSON shape the extraction prompt asks for.
type rawExtraction struct {
	Memories []struct {
		Content    string   `json:"content"`
		MemoryType string   `json:"memory_type"`
		Confidence *float64 `json:"confidence"`
		Importance *float64 `json:"importance"`
	} `json:"memories"`
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	ActionItems    []string `json:"action_items"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
}

// ParseExtractionResponse parses the model's extraction JSON. A malformed
// response yields an empty result rather than an error: a bad transcript is
// not worth failing a webhook over.
func ParseExtractionResponse(response string) *types.ExtractionResult {
	var raw rawExtraction
	if err := json.Unmarshal([]byte(extractJSON(response)), &raw); err != nil {
		return &types.ExtractionResult{}
	}

	result := &types.ExtractionResult{
		Summary:        raw.Summary,
		KeyPoints:      raw.KeyPoints,
		ActionItems:    raw.ActionItems,
		SentimentScore: raw.SentimentScore,
	}
	if types.IsValidSentiment(raw.Sentiment) {
		result.Sentiment = raw.Sentiment
	}

	for _, m := range raw.Memories {
		if m.Content == "" {
			continue
		}
		confidence := 0.8
		if m.Confidence != nil {
			confidence = clamp01(*m.Confidence)
		}
		importance := 0.5
		if m.Importance != nil {
			importance = clamp01(*m.Importance)
		}
		result.Memories = append(result.Memories, types.ExtractedMemory{
			Content:    m.Content,
			Type:       types.ParseMemoryType(strings.ToLower(m.MemoryType)),
			Confidence: confidence,
			Importance: importance,
		})
	}

	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
