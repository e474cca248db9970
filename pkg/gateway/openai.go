package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/logger"
)

var _ Gateway = (*OpenAI)(nil)

// OpenAI implements chat and image generation. Video is not offered.
type OpenAI struct {
	client openai.Client

	chatModel  string
	imageModel string

	timeout         time.Duration
	maxOutputTokens int64
}

func NewOpenAI(pc config.ProviderConfig, gc config.GatewayConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(pc.APIKey)}
	if pc.APIBase != "" {
		opts = append(opts, option.WithBaseURL(pc.APIBase))
	}
	return &OpenAI{
		client:          openai.NewClient(opts...),
		chatModel:       gc.ChatModel,
		imageModel:      gc.ImageModel,
		timeout:         time.Duration(gc.TimeoutSeconds) * time.Second,
		maxOutputTokens: int64(gc.MaxOutputTokens),
	}
}

func (o *OpenAI) Provider() string { return "openai" }

func (o *OpenAI) Model(op Operation) string {
	if op == OpImage {
		return o.imageModel
	}
	return o.chatModel
}

func (o *OpenAI) Chat(ctx context.Context, prompt string, atts []attachments.Attachment, opts ChatOptions) (ChatResult, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(atts)+1)
	for _, a := range atts {
		if !a.IsLocal() || a.Type != attachments.TypeImage {
			continue
		}
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:" + a.MIMEType + ";base64," + a.Data,
		}))
	}
	parts = append(parts, openai.TextContentPart(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    o.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	}
	if o.maxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.maxOutputTokens)
	}
	if opts.ThinkingBudget > 0 {
		params.ReasoningEffort = reasoningEffort(opts.ThinkingBudget)
	}
	if opts.UseSearch || opts.UseMaps {
		logger.DebugCF("gateway", "Grounding tools not available on chat completions",
			map[string]interface{}{"provider": "openai", "search": opts.UseSearch, "maps": opts.UseMaps})
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, ErrEmptyResponse
	}
	return ChatResult{Text: resp.Choices[0].Message.Content}, nil
}

// reasoningEffort buckets a token budget into the coarse effort levels.
func reasoningEffort(budget int) shared.ReasoningEffort {
	switch {
	case budget <= 2048:
		return shared.ReasoningEffortLow
	case budget <= 16384:
		return shared.ReasoningEffortMedium
	default:
		return shared.ReasoningEffortHigh
	}
}

func (o *OpenAI) GenerateImage(ctx context.Context, prompt string) (MediaResult, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  o.imageModel,
		N:      openai.Int(1),
	})
	if err != nil {
		return MediaResult{}, fmt.Errorf("openai image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return MediaResult{}, ErrEmptyResponse
	}

	img := resp.Data[0]
	switch {
	case img.B64JSON != "":
		return MediaResult{URL: "data:image/png;base64," + img.B64JSON, MIMEType: "image/png"}, nil
	case strings.TrimSpace(img.URL) != "":
		return MediaResult{URL: img.URL, MIMEType: "image/png"}, nil
	default:
		return MediaResult{}, ErrEmptyResponse
	}
}

func (o *OpenAI) GenerateVideo(ctx context.Context, prompt string) (MediaResult, error) {
	return MediaResult{}, fmt.Errorf("openai video: %w", ErrUnsupported)
}
