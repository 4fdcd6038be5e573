package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/raphaelgruber/kbchat/internal/chat"
	"github.com/raphaelgruber/kbchat/internal/config"
	"github.com/raphaelgruber/kbchat/internal/metrics"
	"github.com/raphaelgruber/kbchat/internal/models"
)

// converser is the part of the Bedrock runtime client used here.
type converser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock answers through the Bedrock Converse API.
type Bedrock struct {
	client  converser
	modelID string
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewBedrock loads AWS credentials from the default chain and creates a client.
func NewBedrock(ctx context.Context, cfg config.Config, m *metrics.Collector, logger *slog.Logger) (*Bedrock, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModel, m, logger), nil
}

func newBedrock(client converser, modelID string, m *metrics.Collector, logger *slog.Logger) *Bedrock {
	if m == nil {
		m = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bedrock{client: client, modelID: modelID, metrics: m, logger: logger}
}

// Model returns the Bedrock model id.
func (b *Bedrock) Model() string {
	return b.modelID
}

// Complete implements chat.Completer. The reply arrives whole; OnToken
// receives it as a single fragment.
func (b *Bedrock) Complete(ctx context.Context, req chat.Request) (string, error) {
	turns := mergeTurns(req.History)
	if len(turns) == 0 {
		return "", fmt.Errorf("no user message to answer")
	}

	messages := make([]types.Message, 0, len(turns))
	for _, t := range turns {
		role := types.ConversationRoleUser
		if t.role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: t.content}},
		})
	}

	start := time.Now()
	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(b.modelID),
		Messages: messages,
		System:   []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: systemPrompt(req.Folder)}},
	})
	duration := time.Since(start)
	if err != nil {
		b.metrics.RecordFailure(metrics.OpLLMGenerate)
		b.logger.Warn("converse failed", "model", b.modelID, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("converse: %w", wrapFatalError(err))
	}

	reply, err := converseText(out)
	if err != nil {
		b.metrics.RecordFailure(metrics.OpLLMGenerate)
		return "", err
	}

	var in, outTokens int64
	if out.Usage != nil {
		in = int64(aws.ToInt32(out.Usage.InputTokens))
		outTokens = int64(aws.ToInt32(out.Usage.OutputTokens))
	}
	b.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, outTokens)

	if req.OnToken != nil {
		if err := req.OnToken(reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// converseText concatenates the text blocks of the output message.
func converseText(out *bedrockruntime.ConverseOutput) (string, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected converse output %T", out.Output)
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return sb.String(), nil
}

var _ chat.Completer = (*Bedrock)(nil)
