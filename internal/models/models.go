package models

import (
	"strings"
	"time"
)

// OptionCount is the number of answer options a quiz-eligible question
// carries. Option index 0..3 maps to labels A..D.
const OptionCount = 4

// Question is one extracted exam item. Field names follow the JSON schema
// the extraction prompt requests from the model, which is also the snapshot
// wire format.
type Question struct {
	Number             int      `json:"question_number"`
	Section            string   `json:"section"`
	Text               string   `json:"question_text"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correct_option_index,omitempty"`
	HasMarkedAnswer    bool     `json:"has_marked_answer"`
	HasDiagram         bool     `json:"has_diagram"`
	// DiagramImage is a base64 data URI for the rendered source page,
	// attached by the diagram linker when a page image could be associated.
	DiagramImage string `json:"diagram_image,omitempty"`
}

// SectionLabel returns the section, falling back to a generic label when the
// source text carried none.
func (q *Question) SectionLabel() string {
	if s := strings.TrimSpace(q.Section); s != "" {
		return s
	}
	return "General"
}

// IsCorrect reports whether the given option index matches the marked
// answer. Questions without a marked answer never match.
func (q *Question) IsCorrect(optionIndex int) bool {
	return q.CorrectOptionIndex != nil && optionIndex == *q.CorrectOptionIndex
}

// Score tracks quiz progress counters. Attempted is always the sum of
// Correct and Incorrect.
type Score struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Attempted int `json:"attempted"`
}

// Snapshot is the persisted form of a quiz session: the question set, the
// running score and the wrong-question list. Transient UI flags (current
// selection, reveal state, position, filter) are deliberately excluded so a
// snapshot round-trips to an equivalent session.
type Snapshot struct {
	Questions      []Question `json:"questions"`
	Score          Score      `json:"score"`
	WrongQuestions []Question `json:"wrongQuestions"`
}

// Document records one uploaded exam PDF.
type Document struct {
	ID           int64
	OriginalName string
	StoredPath   string
	PageCount    int
	UploadedAt   time.Time
}

// SanitizeQuestions filters a raw extraction result down to quiz-eligible
// questions. The model's output is untrusted: questions without exactly four
// options or without text are dropped, and a correct_option_index outside
// the option range is coerced to unset.
func SanitizeQuestions(raw []Question) []Question {
	out := make([]Question, 0, len(raw))
	for _, q := range raw {
		if len(q.Options) != OptionCount {
			continue
		}
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		if q.CorrectOptionIndex != nil {
			if idx := *q.CorrectOptionIndex; idx < 0 || idx >= len(q.Options) {
				q.CorrectOptionIndex = nil
				q.HasMarkedAnswer = false
			}
		}
		out = append(out, q)
	}
	return out
}
