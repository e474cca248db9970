package gateway

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/logger"
	"github.com/sipeed/polychat/pkg/transcript"
)

var (
	_ Gateway    = (*Gemini)(nil)
	_ Downloader = (*Gemini)(nil)
)

// Gemini implements Gateway on the Gemini API: chat with optional search
// and maps grounding, Imagen for images and Veo for videos.
type Gemini struct {
	client *genai.Client

	chatModel  string
	imageModel string
	videoModel string

	timeout         time.Duration
	pollInterval    time.Duration
	maxOutputTokens int32
}

func NewGemini(ctx context.Context, pc config.ProviderConfig, gc config.GatewayConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  pc.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if pc.APIBase != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: pc.APIBase}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	poll := time.Duration(gc.VideoPollSeconds) * time.Second
	if poll <= 0 {
		poll = 10 * time.Second
	}

	return &Gemini{
		client:          client,
		chatModel:       gc.ChatModel,
		imageModel:      gc.ImageModel,
		videoModel:      gc.VideoModel,
		timeout:         time.Duration(gc.TimeoutSeconds) * time.Second,
		pollInterval:    poll,
		maxOutputTokens: int32(gc.MaxOutputTokens),
	}, nil
}

func (g *Gemini) Provider() string { return "gemini" }

func (g *Gemini) Model(op Operation) string {
	switch op {
	case OpImage:
		return g.imageModel
	case OpVideo:
		return g.videoModel
	default:
		return g.chatModel
	}
}

func (g *Gemini) Chat(ctx context.Context, prompt string, atts []attachments.Attachment, opts ChatOptions) (ChatResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	parts := make([]*genai.Part, 0, len(atts)+1)
	for _, a := range atts {
		if !a.IsLocal() {
			continue
		}
		raw, err := attachments.DecodePayload(a)
		if err != nil {
			return ChatResult{}, fmt.Errorf("decode attachment %s: %w", a.Name, err)
		}
		parts = append(parts, genai.NewPartFromBytes(raw, a.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	budget := int32(opts.ThinkingBudget)
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxOutputTokens,
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingBudget: &budget},
	}
	if opts.UseSearch {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if opts.UseMaps {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, cfg)
	if err != nil {
		return ChatResult{}, fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return ChatResult{}, ErrEmptyResponse
	}

	return ChatResult{
		Text:    resp.Text(),
		Sources: geminiSources(resp.Candidates[0]),
	}, nil
}

func geminiSources(c *genai.Candidate) []transcript.GroundingSource {
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	var out []transcript.GroundingSource
	for _, ch := range c.GroundingMetadata.GroundingChunks {
		switch {
		case ch == nil:
		case ch.Web != nil:
			out = append(out, transcript.GroundingSource{Title: ch.Web.Title, URI: ch.Web.URI})
		case ch.Maps != nil:
			out = append(out, transcript.GroundingSource{Title: ch.Maps.Title, URI: ch.Maps.URI})
		case ch.RetrievedContext != nil:
			out = append(out, transcript.GroundingSource{Title: ch.RetrievedContext.Title, URI: ch.RetrievedContext.URI})
		}
	}
	return out
}

func (g *Gemini) GenerateImage(ctx context.Context, prompt string) (MediaResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return MediaResult{}, fmt.Errorf("gemini generate images: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return MediaResult{}, ErrEmptyResponse
	}

	img := resp.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return MediaResult{
		URL:      attachments.EncodeDataURL(mimeType, img.ImageBytes),
		MIMEType: mimeType,
	}, nil
}

// GenerateVideo starts a long-running Veo operation and polls it until done.
func (g *Gemini) GenerateVideo(ctx context.Context, prompt string) (MediaResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	op, err := g.client.Models.GenerateVideos(ctx, g.videoModel, prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
	if err != nil {
		return MediaResult{}, fmt.Errorf("gemini generate videos: %w", err)
	}

	for !op.Done {
		logger.DebugCF("gateway", "Waiting for video operation",
			map[string]interface{}{"operation": op.Name, "interval": g.pollInterval.String()})
		select {
		case <-ctx.Done():
			return MediaResult{}, fmt.Errorf("waiting for video: %w", ctx.Err())
		case <-time.After(g.pollInterval):
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return MediaResult{}, fmt.Errorf("poll video operation: %w", err)
		}
	}

	if op.Error != nil {
		if msg, ok := op.Error["message"].(string); ok && msg != "" {
			return MediaResult{}, fmt.Errorf("video generation failed: %s", msg)
		}
		return MediaResult{}, fmt.Errorf("video generation failed: %v", op.Error)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 ||
		op.Response.GeneratedVideos[0].Video == nil || op.Response.GeneratedVideos[0].Video.URI == "" {
		return MediaResult{}, ErrEmptyResponse
	}

	return MediaResult{
		URL:      op.Response.GeneratedVideos[0].Video.URI,
		MIMEType: "video/mp4",
	}, nil
}

// Download fetches a hosted Gemini file such as a generated video. The client
// authenticates the request, so result URLs stay free of the API key.
func (g *Gemini) Download(ctx context.Context, uri string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	data, err := g.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: uri}), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini download: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}
	return data, nil
}
