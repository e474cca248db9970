// Package agent coordinates a conversation: it owns the composition buffer,
// dispatches submissions to the generation gateway and folds the results
// back into the transcript.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/gateway"
	"github.com/sipeed/polychat/pkg/logger"
	"github.com/sipeed/polychat/pkg/status"
	"github.com/sipeed/polychat/pkg/transcript"
)

var (
	ErrUnknownMode    = errors.New("unknown mode")
	ErrNegativeBudget = errors.New("thinking budget must be >= 0")
	ErrNotFetchable   = errors.New("attachment cannot be fetched")
)

const (
	imageCaption  = "Generated image for: \"%s\""
	videoCaption  = "Generated video for: \"%s\""
	failureNotice = "Sorry, I encountered an error: %s"

	generatedImageMIME = "image/png"
	generatedVideoMIME = "video/mp4"
)

// GenerationParams describes one dispatch to the gateway.
type GenerationParams struct {
	Prompt      string
	Mode        string
	Attachments []attachments.Attachment
}

// FlagPolicy derives the chat grounding flags from the submitted text.
type FlagPolicy func(text string) (useSearch, useMaps bool)

type Controller struct {
	gateway    gateway.Gateway
	transcript *transcript.Store
	status     *status.Register
	ingestor   *attachments.Ingestor

	mu             sync.Mutex
	pending        []attachments.Attachment
	mode           string
	thinkingBudget int
	inflight       bool

	flags FlagPolicy
	now   func() time.Time
	newID func() string
}

// NewController wires a controller over the given stores. A nil transcript,
// register or ingestor gets a fresh one sharing a single preview store.
func NewController(cfg config.AgentConfig, gw gateway.Gateway, ts *transcript.Store, reg *status.Register, ing *attachments.Ingestor) *Controller {
	if ing == nil {
		ing = attachments.NewIngestor(attachments.NewPreviewStore())
	}
	if ts == nil {
		ts = transcript.NewStore(ing.Previews())
	}
	if reg == nil {
		reg = status.NewRegister()
	}
	mode := cfg.DefaultMode
	if !config.IsMode(mode) {
		mode = config.ModeChat
	}
	budget := cfg.ThinkingBudget
	if budget < 0 {
		budget = 0
	}

	return &Controller{
		gateway:        gw,
		transcript:     ts,
		status:         reg,
		ingestor:       ing,
		mode:           mode,
		thinkingBudget: budget,
		flags:          InferChatFlags,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// SetFlagPolicy replaces the search/maps heuristic. nil restores the default.
func (c *Controller) SetFlagPolicy(p FlagPolicy) {
	if p == nil {
		p = InferChatFlags
	}
	c.mu.Lock()
	c.flags = p
	c.mu.Unlock()
}

func (c *Controller) Transcript() *transcript.Store { return c.transcript }

func (c *Controller) StatusRegister() *status.Register { return c.status }

func (c *Controller) Status() status.Status { return c.status.Get() }

func (c *Controller) Messages() []transcript.Message { return c.transcript.Messages() }

func (c *Controller) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) SetMode(mode string) error {
	if !config.IsMode(mode) {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

func (c *Controller) ThinkingBudget() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinkingBudget
}

// SetThinkingBudget sets the chat reasoning budget. 0 disables reasoning.
func (c *Controller) SetThinkingBudget(v int) error {
	if v < 0 {
		return ErrNegativeBudget
	}
	c.mu.Lock()
	c.thinkingBudget = v
	c.mu.Unlock()
	return nil
}

// PendingAttachments returns a copy of the composition buffer.
func (c *Controller) PendingAttachments() []attachments.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]attachments.Attachment(nil), c.pending...)
}

// OnFileSelected ingests f and appends it to the composition buffer. A nil
// file is ignored.
func (c *Controller) OnFileSelected(ctx context.Context, f *attachments.File) (attachments.Attachment, error) {
	att, err := c.ingestor.Ingest(ctx, f)
	if errors.Is(err, attachments.ErrNoFile) {
		return attachments.Attachment{}, nil
	}
	if err != nil {
		return attachments.Attachment{}, err
	}

	c.mu.Lock()
	c.pending = append(c.pending, att)
	n := len(c.pending)
	c.mu.Unlock()

	logger.DebugCF("agent", "Attachment composed",
		map[string]interface{}{"name": att.Name, "type": att.Type, "pending": n})
	return att, nil
}

// RemoveComposedAttachment drops the attachment at index i from the
// composition buffer and releases its preview.
func (c *Controller) RemoveComposedAttachment(i int) bool {
	c.mu.Lock()
	if i < 0 || i >= len(c.pending) {
		c.mu.Unlock()
		return false
	}
	att := c.pending[i]
	c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
	c.mu.Unlock()

	c.ingestor.Previews().Release(att.URL)
	return true
}

// Submit sends text plus the composed attachments. It returns false without
// side effects when there is nothing to send or a submission is in flight.
// Generation failures become an assistant message; they are not returned.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	c.mu.Lock()
	if c.inflight || c.status.Get() != status.Idle {
		c.mu.Unlock()
		logger.DebugC("agent", "Submit ignored: agent busy")
		return false
	}
	if strings.TrimSpace(text) == "" && len(c.pending) == 0 {
		c.mu.Unlock()
		return false
	}
	params := GenerationParams{
		Prompt:      text,
		Mode:        c.mode,
		Attachments: c.pending,
	}
	c.pending = nil
	c.inflight = true
	budget := c.thinkingBudget
	flags := c.flags
	c.mu.Unlock()

	defer c.finish()

	c.appendMessage(transcript.Message{
		Role:        transcript.RoleUser,
		Content:     params.Prompt,
		Attachments: params.Attachments,
	})
	c.status.Set(status.Thinking)

	logger.InfoCF("agent", "Dispatching submission",
		map[string]interface{}{"mode": params.Mode, "attachments": len(params.Attachments), "chars": len(params.Prompt)})

	reply, err := c.dispatch(ctx, params, budget, flags)
	if err != nil {
		logger.ErrorCF("agent", "Generation failed",
			map[string]interface{}{"mode": params.Mode, "error": err.Error()})
		c.appendMessage(transcript.Message{
			Role:    transcript.RoleAssistant,
			Content: fmt.Sprintf(failureNotice, err.Error()),
		})
		c.status.Set(status.Error)
		return true
	}
	c.appendMessage(reply)
	return true
}

// finish always leaves the register idle, including after an error.
func (c *Controller) finish() {
	c.mu.Lock()
	c.inflight = false
	c.mu.Unlock()
	c.status.Set(status.Idle)
}

func (c *Controller) dispatch(ctx context.Context, p GenerationParams, budget int, flags FlagPolicy) (transcript.Message, error) {
	switch p.Mode {
	case config.ModeImage:
		c.status.Set(status.Generating)
		res, err := c.gateway.GenerateImage(ctx, p.Prompt)
		if err != nil {
			return transcript.Message{}, err
		}
		return mediaReply(imageCaption, p.Prompt, attachments.TypeImage, generatedImageMIME, res), nil

	case config.ModeVideo:
		c.status.Set(status.Generating)
		res, err := c.gateway.GenerateVideo(ctx, p.Prompt)
		if err != nil {
			return transcript.Message{}, err
		}
		return mediaReply(videoCaption, p.Prompt, attachments.TypeVideo, generatedVideoMIME, res), nil

	default:
		useSearch, useMaps := flags(p.Prompt)
		res, err := c.gateway.Chat(ctx, p.Prompt, p.Attachments, gateway.ChatOptions{
			UseSearch:      useSearch,
			UseMaps:        useMaps,
			ThinkingBudget: budget,
		})
		if err != nil {
			return transcript.Message{}, err
		}
		return transcript.Message{
			Role:             transcript.RoleAssistant,
			Content:          res.Text,
			GroundingSources: res.Sources,
		}, nil
	}
}

func mediaReply(caption, prompt string, t attachments.Type, mimeType string, res gateway.MediaResult) transcript.Message {
	return transcript.Message{
		Role:    transcript.RoleAssistant,
		Content: fmt.Sprintf(caption, prompt),
		Attachments: []attachments.Attachment{{
			Type:     t,
			URL:      res.URL,
			MIMEType: mimeType,
		}},
	}
}

// FetchAttachment returns the bytes behind an attachment: its inline payload,
// an inline data URL, a live preview, or a gateway download.
func (c *Controller) FetchAttachment(ctx context.Context, a attachments.Attachment) ([]byte, error) {
	switch {
	case a.IsLocal():
		return attachments.DecodePayload(a)
	case strings.HasPrefix(a.URL, "data:"):
		_, payload, _ := attachments.ParseDataURL(a.URL)
		return attachments.DecodePayload(attachments.Attachment{Data: payload})
	case attachments.IsPreview(a.URL):
		_, data, err := c.ingestor.Previews().Open(a.URL)
		return data, err
	}
	d, ok := c.gateway.(gateway.Downloader)
	if !ok || a.URL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFetchable, a.URL)
	}
	return d.Download(ctx, a.URL)
}

func (c *Controller) appendMessage(m transcript.Message) {
	m.ID = c.newID()
	m.Timestamp = c.now().UnixMilli()
	if err := c.transcript.Append(m); err != nil {
		logger.ErrorCF("agent", "Transcript append failed",
			map[string]interface{}{"role": m.Role, "error": err.Error()})
	}
}

// Close releases every preview still referenced by the composition buffer or
// the transcript.
func (c *Controller) Close() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	released := c.transcript.Close()
	for _, att := range pending {
		if c.ingestor.Previews().Release(att.URL) {
			released++
		}
	}
	logger.DebugCF("agent", "Controller closed",
		map[string]interface{}{"released_previews": released})
}
