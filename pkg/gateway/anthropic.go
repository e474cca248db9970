package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/logger"
)

var _ Gateway = (*Anthropic)(nil)

// minThinkingBudget is the smallest budget the Messages API accepts.
const minThinkingBudget = 1024

// Anthropic implements chat only; image and video are unsupported.
type Anthropic struct {
	client anthropic.Client

	chatModel string
	timeout   time.Duration
	maxTokens int64
}

func NewAnthropic(pc config.ProviderConfig, gc config.GatewayConfig) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(pc.APIKey)}
	if pc.APIBase != "" {
		opts = append(opts, option.WithBaseURL(pc.APIBase))
	}
	maxTokens := int64(gc.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		chatModel: gc.ChatModel,
		timeout:   time.Duration(gc.TimeoutSeconds) * time.Second,
		maxTokens: maxTokens,
	}
}

func (a *Anthropic) Provider() string { return "anthropic" }

func (a *Anthropic) Model(Operation) string { return a.chatModel }

func (a *Anthropic) Chat(ctx context.Context, prompt string, atts []attachments.Attachment, opts ChatOptions) (ChatResult, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(atts)+1)
	for _, att := range atts {
		if !att.IsLocal() || att.Type != attachments.TypeImage {
			continue
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(att.MIMEType, att.Data))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.chatModel),
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if opts.ThinkingBudget > 0 {
		budget := int64(opts.ThinkingBudget)
		if budget < minThinkingBudget {
			budget = minThinkingBudget
		}
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + a.maxTokens
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	if opts.UseSearch || opts.UseMaps {
		logger.DebugCF("gateway", "Grounding tools not wired for provider",
			map[string]interface{}{"provider": "anthropic", "search": opts.UseSearch, "maps": opts.UseMaps})
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return ChatResult{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return ChatResult{Text: b.String()}, nil
}

func (a *Anthropic) GenerateImage(ctx context.Context, prompt string) (MediaResult, error) {
	return MediaResult{}, fmt.Errorf("anthropic image: %w", ErrUnsupported)
}

func (a *Anthropic) GenerateVideo(ctx context.Context, prompt string) (MediaResult, error) {
	return MediaResult{}, fmt.Errorf("anthropic video: %w", ErrUnsupported)
}
