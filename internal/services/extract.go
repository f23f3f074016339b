package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"exam-quiz/internal/models"
)

// maxPromptChars bounds how much of the exam text is embedded in the
// extraction prompt, respecting upstream request-size limits. Overflow is
// trimmed, never an error.
const maxPromptChars = 25000

const extractionTimeout = 2 * time.Minute

// chatClient is the slice of the OpenAI client the extraction service uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ExtractionService converts raw exam text into structured questions by
// prompting an OpenAI-compatible chat-completion API. The call is not
// deterministic: two calls with the same text may yield different questions.
type ExtractionService struct {
	client chatClient
	model  string
}

func NewExtractionService(apiKey, model, endpoint string) *ExtractionService {
	if apiKey == "" {
		return &ExtractionService{model: model}
	}

	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &ExtractionService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *ExtractionService) disabled() bool {
	return s.client == nil || s.model == ""
}

// Extract sends one blocking chat-completion request and decodes the reply
// into question records. No retries, no streaming; failures carry an
// ExtractionError kind so callers can tell transport, upstream, parse and
// empty-result cases apart.
func (s *ExtractionService) Extract(ctx context.Context, text string) ([]models.Question, error) {
	if s.disabled() {
		return nil, newExtractionError(ErrKindUpstream, "llm api key is not configured", "")
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildExtractionPrompt(text),
			},
		},
		Temperature: 0.1,
		MaxTokens:   8000,
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, newExtractionError(ErrKindUpstream, "llm returned no choices", "")
	}

	questions, err := decodeQuestions(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, newExtractionError(ErrKindEmptyResult, "no questions extracted", "")
	}
	return questions, nil
}

// classifyRequestError maps client errors onto the extraction taxonomy: an
// answered-but-unhappy API is upstream, everything before that is transport.
func classifyRequestError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newExtractionError(ErrKindUpstream, "llm api error", apiErr.Error())
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newExtractionError(ErrKindUpstream,
			fmt.Sprintf("llm api returned status %d", reqErr.HTTPStatusCode), reqErr.Error())
	}
	return newExtractionError(ErrKindTransport, "llm request failed", err.Error())
}

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(`You are an exam question extractor. Extract ALL questions from this competitive exam text.

TEXT:
%s

INSTRUCTIONS:
1. Extract EVERY question (don't skip any)
2. For each question find:
   - Question number
   - Section (Reasoning/Quantitative/GA/English)
   - Complete question text
   - All 4 options (A, B, C, D)
   - Correct answer if marked with a tick or highlight
   - Whether it has diagram/figure

3. Return ONLY valid JSON array in this exact format:
[
  {
    "question_number": 1,
    "section": "Reasoning",
    "question_text": "Complete question text here",
    "options": ["Option A text", "Option B text", "Option C text", "Option D text"],
    "correct_option_index": 0,
    "has_marked_answer": false,
    "has_diagram": false
  }
]

CRITICAL: Return ONLY the JSON array, no other text, no markdown, no explanation.`,
		truncateRunes(text, maxPromptChars))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
