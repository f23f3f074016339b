package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"exam-quiz/internal/models"
)

// jsonArrayPattern locates the first-to-last bracketed region of the reply,
// the same greedy match the model is prompted to satisfy.
var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// stripCodeFences removes markdown code block formatting if present, so a
// reply wrapped in ```json ... ``` decodes the same as a bare array.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		// Skip past the opening ``` and optional language identifier (e.g., "json")
		start := 3
		if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}

		if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
			content = content[start : start+endIdx]
		} else {
			// No closing ```, just take everything after the opening
			content = content[start:]
		}
	}

	return strings.TrimSpace(content)
}

// decodeQuestions turns the model's free-text reply into question records.
// It performs no per-question schema validation; every field must be treated
// as malformed until consumed defensively (see models.SanitizeQuestions).
func decodeQuestions(content string) ([]models.Question, error) {
	cleaned := stripCodeFences(content)

	match := jsonArrayPattern.FindString(cleaned)
	if match == "" {
		return nil, newExtractionError(ErrKindParse, "no JSON found", snippet(content, 200))
	}

	var questions []models.Question
	if err := json.Unmarshal([]byte(match), &questions); err != nil {
		return nil, newExtractionError(ErrKindParse, "malformed JSON", err.Error())
	}
	return questions, nil
}

func snippet(s string, limit int) string {
	collapsed := strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return string(runes[:limit]) + "..."
}
