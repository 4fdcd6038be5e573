package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/raphaelgruber/kbchat/internal/chat"
	"github.com/raphaelgruber/kbchat/internal/metrics"
	"github.com/raphaelgruber/kbchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"bedrock access denied", errors.New("AccessDeniedException: not authorized"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("quota exceeded for model")), true},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	fatal := errors.New("invalid api key provided")
	assert.ErrorIs(t, wrapFatalError(fatal), ErrFatalAPI)
	assert.ErrorIs(t, wrapFatalError(fatal), fatal)

	transient := errors.New("network timeout")
	assert.Same(t, transient, wrapFatalError(transient))
	assert.Nil(t, wrapFatalError(nil))
}

func TestMergeTurns(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleAssistant, Content: "welcome"},
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleUser, Content: "q1 again"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}

	got := mergeTurns(history)

	assert.Equal(t, []turn{
		{role: models.RoleUser, content: "q1\n\nq1 again"},
		{role: models.RoleAssistant, content: "a1"},
		{role: models.RoleUser, content: "q2"},
	}, got)
	assert.Empty(t, mergeTurns(nil))
}

// fakeModel is a langchaingo model that replays chunks through the streaming callback.
type fakeModel struct {
	chunks   []string
	info     map[string]any
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	var full string
	for _, c := range f.chunks {
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
		full += c
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full, GenerationInfo: f.info}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestModelComplete(t *testing.T) {
	fake := &fakeModel{
		chunks: []string{"hi", " there"},
		info:   map[string]any{"PromptTokens": 12, "CompletionTokens": 3},
	}
	m := metrics.NewCollector()
	model := NewModelFrom(fake, "test-model", m, nil)

	var tokens []string
	reply, err := model.Complete(context.Background(), chat.Request{
		History: []models.Message{{Role: models.RoleUser, Content: "hello"}},
		Folder:  "itg",
		OnToken: func(tok string) error {
			tokens = append(tokens, tok)
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, []string{"hi", " there"}, tokens)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)

	snap := m.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	assert.Equal(t, int64(12), *snap.InputTokens)
	assert.Equal(t, int64(3), *snap.OutputTokens)
}

func TestModelCompleteFailure(t *testing.T) {
	m := metrics.NewCollector()
	model := NewModelFrom(&fakeModel{err: errors.New("invalid api key")}, "test-model", m, nil)

	_, err := model.Complete(context.Background(), chat.Request{
		History: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	})

	assert.ErrorIs(t, err, ErrFatalAPI)
	assert.Equal(t, int64(1), m.Snapshot().LLMGenerate.Failures)
}

func TestTokenUsage(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		in, out int64
	}{
		{"openai style", map[string]any{"PromptTokens": 5, "CompletionTokens": 7}, 5, 7},
		{"anthropic style", map[string]any{"InputTokens": 9, "OutputTokens": 2}, 9, 2},
		{"float values", map[string]any{"prompt_tokens": 4.0, "completion_tokens": 1.0}, 4, 1},
		{"missing", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := tokenUsage(tt.info)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}

type fakeConverser struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverser) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockComplete(t *testing.T) {
	fake := &fakeConverser{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "hi "},
				&types.ContentBlockMemberText{Value: "there"},
			},
		}},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(8), OutputTokens: aws.Int32(2)},
	}}
	m := metrics.NewCollector()
	b := newBedrock(fake, "anthropic.claude-3-haiku-20240307-v1:0", m, nil)

	var tokens []string
	reply, err := b.Complete(context.Background(), chat.Request{
		History: []models.Message{
			{Role: models.RoleUser, Content: "q1"},
			{Role: models.RoleAssistant, Content: "a1"},
			{Role: models.RoleUser, Content: "hello"},
		},
		Folder: "itg",
		OnToken: func(tok string) error {
			tokens = append(tokens, tok)
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, []string{"hi there"}, tokens)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(fake.input.ModelId))
	require.Len(t, fake.input.Messages, 3)
	assert.Equal(t, types.ConversationRoleAssistant, fake.input.Messages[1].Role)
	require.Len(t, fake.input.System, 1)

	snap := m.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	assert.Equal(t, int64(8), *snap.InputTokens)
}

func TestBedrockRequiresUserTurn(t *testing.T) {
	b := newBedrock(&fakeConverser{}, "model", nil, nil)
	_, err := b.Complete(context.Background(), chat.Request{
		History: []models.Message{{Role: models.RoleAssistant, Content: "orphan"}},
	})
	assert.Error(t, err)
}

func TestBedrockFailure(t *testing.T) {
	b := newBedrock(&fakeConverser{err: errors.New("ThrottlingException: rate limit")}, "model", nil, nil)
	_, err := b.Complete(context.Background(), chat.Request{
		History: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	})
	assert.ErrorIs(t, err, ErrFatalAPI)
}
