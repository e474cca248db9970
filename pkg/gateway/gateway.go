// Package gateway is the boundary to the remote generation service.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/transcript"
)

var (
	// ErrUnsupported is returned by adapters whose provider lacks an operation.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrEmptyResponse is returned when the provider answered with nothing usable.
	ErrEmptyResponse = errors.New("provider returned an empty response")
)

// ChatOptions tune a single chat call.
type ChatOptions struct {
	UseSearch      bool `json:"useSearch"`
	UseMaps        bool `json:"useMaps"`
	ThinkingBudget int  `json:"thinkingBudget"`
}

type ChatResult struct {
	Text    string
	Sources []transcript.GroundingSource
}

// MediaResult points at generated bytes. MIMEType is advisory.
type MediaResult struct {
	URL      string
	MIMEType string
}

// Gateway exposes the three generation operations. Every call may block
// until the provider answers and may fail with a human-readable error.
type Gateway interface {
	Chat(ctx context.Context, prompt string, atts []attachments.Attachment, opts ChatOptions) (ChatResult, error)
	GenerateImage(ctx context.Context, prompt string) (MediaResult, error)
	GenerateVideo(ctx context.Context, prompt string) (MediaResult, error)
}

// Identity is implemented by adapters that can name their provider and
// models, for usage accounting.
type Identity interface {
	Provider() string
	Model(op Operation) string
}

// Downloader is implemented by adapters whose media results need provider
// credentials to fetch. The credentials never appear in the result URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Operation names a Gateway method.
type Operation string

const (
	OpChat  Operation = "chat"
	OpImage Operation = "image"
	OpVideo Operation = "video"
)

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
