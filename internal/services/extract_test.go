package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	reply string
	err   error
	// last request, for prompt assertions
	req openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func TestExtract_MissingAPIKey(t *testing.T) {
	svc := NewExtractionService("", "some-model", "")

	_, err := svc.Extract(context.Background(), "question text")
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrKindUpstream, kind)
}

func TestExtract_DecodesReply(t *testing.T) {
	client := &fakeChatClient{
		reply: "```json\n[{\"question_number\":1,\"section\":\"GA\",\"question_text\":\"Q?\",\"options\":[\"a\",\"b\",\"c\",\"d\"],\"correct_option_index\":2,\"has_marked_answer\":true}]\n```",
	}
	svc := &ExtractionService{client: client, model: "test-model"}

	questions, err := svc.Extract(context.Background(), "exam text")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.True(t, questions[0].HasMarkedAnswer)

	// One user message embedding the text, near-deterministic sampling.
	require.Len(t, client.req.Messages, 1)
	assert.Contains(t, client.req.Messages[0].Content, "exam text")
	assert.InDelta(t, 0.1, client.req.Temperature, 0.001)
	assert.Equal(t, 8000, client.req.MaxTokens)
}

func TestExtract_EmptyArrayIsFailure(t *testing.T) {
	svc := &ExtractionService{client: &fakeChatClient{reply: "[]"}, model: "test-model"}

	_, err := svc.Extract(context.Background(), "text")
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrKindEmptyResult, kind)
}

func TestExtract_UpstreamErrorCarriesBody(t *testing.T) {
	apiErr := &openai.APIError{Code: "rate_limit_exceeded", Message: "slow down"}
	svc := &ExtractionService{client: &fakeChatClient{err: apiErr}, model: "test-model"}

	_, err := svc.Extract(context.Background(), "text")
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrKindUpstream, kind)
	assert.Contains(t, err.Error(), "slow down")
}

func TestExtract_NetworkFailureIsTransport(t *testing.T) {
	svc := &ExtractionService{
		client: &fakeChatClient{err: errors.New("dial tcp: connection refused")},
		model:  "test-model",
	}

	_, err := svc.Extract(context.Background(), "text")
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrKindTransport, kind)
}

func TestBuildExtractionPrompt_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", maxPromptChars+5000)

	prompt := buildExtractionPrompt(long)
	assert.Contains(t, prompt, strings.Repeat("x", maxPromptChars))
	assert.NotContains(t, prompt, strings.Repeat("x", maxPromptChars+1))
}

func TestTruncateRunes_ShortInputUnchanged(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
}
