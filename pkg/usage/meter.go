package usage

import (
	"context"
	"time"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/gateway"
	"github.com/sipeed/polychat/pkg/logger"
)

var (
	_ gateway.Gateway    = (*Meter)(nil)
	_ gateway.Downloader = (*Meter)(nil)
)

// Meter records one Record per call made through the wrapped gateway.
type Meter struct {
	next  gateway.Gateway
	store *Store
	now   func() time.Time
}

func NewMeter(next gateway.Gateway, store *Store) *Meter {
	return &Meter{next: next, store: store, now: time.Now}
}

func (m *Meter) Store() *Store { return m.store }

func (m *Meter) Chat(ctx context.Context, prompt string, atts []attachments.Attachment, opts gateway.ChatOptions) (gateway.ChatResult, error) {
	start := m.now()
	res, err := m.next.Chat(ctx, prompt, atts, opts)
	m.record(gateway.OpChat, prompt, len(res.Text), start, err)
	return res, err
}

func (m *Meter) GenerateImage(ctx context.Context, prompt string) (gateway.MediaResult, error) {
	start := m.now()
	res, err := m.next.GenerateImage(ctx, prompt)
	m.record(gateway.OpImage, prompt, 0, start, err)
	return res, err
}

func (m *Meter) GenerateVideo(ctx context.Context, prompt string) (gateway.MediaResult, error) {
	start := m.now()
	res, err := m.next.GenerateVideo(ctx, prompt)
	m.record(gateway.OpVideo, prompt, 0, start, err)
	return res, err
}

// Download passes through to the wrapped gateway and is not recorded.
func (m *Meter) Download(ctx context.Context, url string) ([]byte, error) {
	d, ok := m.next.(gateway.Downloader)
	if !ok {
		return nil, gateway.ErrUnsupported
	}
	return d.Download(ctx, url)
}

func (m *Meter) record(op gateway.Operation, prompt string, outputChars int, start time.Time, err error) {
	r := Record{
		Timestamp:   start.UTC(),
		Operation:   string(op),
		Provider:    "unknown",
		Duration:    m.now().Sub(start),
		PromptChars: len(prompt),
		OutputChars: outputChars,
		Success:     err == nil,
	}
	if id, ok := m.next.(gateway.Identity); ok {
		r.Provider = id.Provider()
		r.Model = id.Model(op)
	}
	if err != nil {
		r.Error = err.Error()
	}
	m.store.Add(r)

	logger.DebugCF("usage", "Recorded generation call",
		map[string]interface{}{"op": r.Operation, "provider": r.Provider, "duration": r.Duration.String(), "success": r.Success})
}
