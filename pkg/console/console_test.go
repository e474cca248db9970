package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sipeed/polychat/pkg/agent"
	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/gateway"
	"github.com/sipeed/polychat/pkg/transcript"
	"github.com/sipeed/polychat/pkg/usage"
)

type scriptedGateway struct {
	err error
}

func (g scriptedGateway) Chat(ctx context.Context, prompt string, atts []attachments.Attachment, opts gateway.ChatOptions) (gateway.ChatResult, error) {
	return gateway.ChatResult{
		Text:    "echo: " + prompt,
		Sources: []transcript.GroundingSource{{Title: "Docs", URI: "https://docs.example"}},
	}, g.err
}

func (g scriptedGateway) GenerateImage(ctx context.Context, prompt string) (gateway.MediaResult, error) {
	return gateway.MediaResult{URL: "data:image/png;base64,QUJDRA=="}, g.err
}

func (g scriptedGateway) GenerateVideo(ctx context.Context, prompt string) (gateway.MediaResult, error) {
	return gateway.MediaResult{URL: "https://files.example/v.mp4"}, g.err
}

func newTestConsole(gw gateway.Gateway) (*Console, *agent.Controller, *bytes.Buffer) {
	store := usage.NewStore(0)
	ctrl := agent.NewController(config.AgentConfig{}, usage.NewMeter(gw, store), nil, nil, nil)
	var out bytes.Buffer
	return New(ctrl, store, &out), ctrl, &out
}

func TestHandleSubmitPrintsReply(t *testing.T) {
	c, ctrl, out := newTestConsole(scriptedGateway{})

	if c.Handle(context.Background(), "  hello there  ") {
		t.Fatal("plain text should not quit")
	}
	got := out.String()
	if !strings.Contains(got, "echo: hello there") || !strings.Contains(got, "[1] Docs https://docs.example") {
		t.Fatalf("output = %q", got)
	}
	if ctrl.Transcript().Len() != 2 {
		t.Fatalf("transcript len = %d", ctrl.Transcript().Len())
	}
}

func TestHandleEmptyLineIsIgnored(t *testing.T) {
	c, ctrl, out := newTestConsole(scriptedGateway{})
	c.Handle(context.Background(), "   ")
	if ctrl.Transcript().Len() != 0 || out.Len() != 0 {
		t.Fatalf("empty line had effects: len=%d out=%q", ctrl.Transcript().Len(), out.String())
	}
}

func TestHandleFailureShowsError(t *testing.T) {
	c, _, out := newTestConsole(scriptedGateway{err: errors.New("network timeout")})
	c.Handle(context.Background(), "hi")
	if !strings.Contains(out.String(), "Sorry, I encountered an error: network timeout") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestHandleModeAndImage(t *testing.T) {
	c, ctrl, out := newTestConsole(scriptedGateway{})

	c.Handle(context.Background(), "/mode painting")
	if !strings.Contains(out.String(), "unknown mode") {
		t.Fatalf("bad mode output = %q", out.String())
	}
	out.Reset()

	c.Handle(context.Background(), "/mode image")
	if ctrl.Mode() != config.ModeImage {
		t.Fatalf("mode = %q", ctrl.Mode())
	}
	c.Handle(context.Background(), "a sunset")
	got := out.String()
	if !strings.Contains(got, `Generated image for: "a sunset"`) || !strings.Contains(got, "(inline image/png, 8 base64 chars)") {
		t.Fatalf("output = %q", got)
	}
}

func TestHandleAttachAndDrop(t *testing.T) {
	c, ctrl, out := newTestConsole(scriptedGateway{})
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c.Handle(context.Background(), "/attach "+path)
	if !strings.Contains(out.String(), "Attached notes.csv as spreadsheet") {
		t.Fatalf("attach output = %q", out.String())
	}
	if len(ctrl.PendingAttachments()) != 1 {
		t.Fatal("attachment not pending")
	}
	if got := c.prompt(); got != "[chat +1] > " {
		t.Fatalf("prompt = %q", got)
	}

	out.Reset()
	c.Handle(context.Background(), "/status")
	if !strings.Contains(out.String(), "1. notes.csv (spreadsheet)") {
		t.Fatalf("status output = %q", out.String())
	}

	out.Reset()
	c.Handle(context.Background(), "/drop 2")
	if !strings.Contains(out.String(), "No pending attachment") {
		t.Fatalf("drop output = %q", out.String())
	}
	c.Handle(context.Background(), "/drop 1")
	if len(ctrl.PendingAttachments()) != 0 {
		t.Fatal("attachment not dropped")
	}

	out.Reset()
	c.Handle(context.Background(), "/attach "+filepath.Join(dir, "missing.txt"))
	if !strings.Contains(out.String(), "Error:") {
		t.Fatalf("missing file output = %q", out.String())
	}
}

func TestHandleBudget(t *testing.T) {
	c, ctrl, out := newTestConsole(scriptedGateway{})

	c.Handle(context.Background(), "/budget 8192")
	if ctrl.ThinkingBudget() != 8192 || !strings.Contains(out.String(), "8,192") {
		t.Fatalf("budget=%d output=%q", ctrl.ThinkingBudget(), out.String())
	}
	out.Reset()
	c.Handle(context.Background(), "/budget 0")
	if ctrl.ThinkingBudget() != 0 || !strings.Contains(out.String(), "Thinking disabled") {
		t.Fatalf("budget=%d output=%q", ctrl.ThinkingBudget(), out.String())
	}
	out.Reset()
	c.Handle(context.Background(), "/budget -3")
	if ctrl.ThinkingBudget() != 0 || !strings.Contains(out.String(), "invalid budget") {
		t.Fatalf("budget=%d output=%q", ctrl.ThinkingBudget(), out.String())
	}
}

func TestHandleHistoryAndUsage(t *testing.T) {
	c, _, out := newTestConsole(scriptedGateway{})

	c.Handle(context.Background(), "/history")
	if !strings.Contains(out.String(), "No messages yet.") {
		t.Fatalf("history output = %q", out.String())
	}
	c.Handle(context.Background(), "/usage")
	if !strings.Contains(out.String(), "No generation calls yet.") {
		t.Fatalf("usage output = %q", out.String())
	}

	c.Handle(context.Background(), "ping")
	out.Reset()
	c.Handle(context.Background(), "/history")
	if !strings.Contains(out.String(), "  1 › ping") || !strings.Contains(out.String(), "  2 • echo: ping") {
		t.Fatalf("history output = %q", out.String())
	}
	out.Reset()
	c.Handle(context.Background(), "/usage")
	if !strings.Contains(out.String(), "Calls: 1 (1 ok, 0 failed)") {
		t.Fatalf("usage output = %q", out.String())
	}
}

func TestHandleQuitAndUnknown(t *testing.T) {
	c, _, out := newTestConsole(scriptedGateway{})
	if c.Handle(context.Background(), "/frobnicate") {
		t.Fatal("unknown command should not quit")
	}
	if !strings.Contains(out.String(), "Unknown command /frobnicate") {
		t.Fatalf("output = %q", out.String())
	}
	if !c.Handle(context.Background(), "/quit") {
		t.Fatal("/quit should end the session")
	}
}

func TestPaintIsPlainUntilStyled(t *testing.T) {
	c, _, _ := newTestConsole(scriptedGateway{})
	st := NewStyles(DefaultTheme)
	if got := c.paint(st.Alert, "boom"); got != "boom" {
		t.Fatalf("unstyled paint = %q", got)
	}
	c.styles = &st
	if got := c.paint(st.Alert, "boom"); !strings.Contains(got, "boom") {
		t.Fatalf("styled paint lost text: %q", got)
	}
}

func TestHandleSave(t *testing.T) {
	c, _, out := newTestConsole(scriptedGateway{})
	path := filepath.Join(t.TempDir(), "out.png")

	c.Handle(context.Background(), "/save "+path)
	if !strings.Contains(out.String(), "No attachment to save.") {
		t.Fatalf("output = %q", out.String())
	}
	out.Reset()

	c.Handle(context.Background(), "/mode image")
	c.Handle(context.Background(), "a sunset")
	c.Handle(context.Background(), "/save "+path)
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "ABCD" {
		t.Fatalf("saved = %q, %v", data, err)
	}
	if !strings.Contains(out.String(), "Saved image (4 bytes)") {
		t.Fatalf("output = %q", out.String())
	}
	out.Reset()

	// the scripted gateway cannot download hosted videos
	c.Handle(context.Background(), "/mode video")
	c.Handle(context.Background(), "waves")
	c.Handle(context.Background(), "/save "+path)
	if !strings.Contains(out.String(), "Error:") {
		t.Fatalf("output = %q", out.String())
	}
}
