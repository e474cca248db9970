// Package console is an interactive terminal front end for the controller.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sipeed/polychat/pkg/agent"
	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/logger"
	"github.com/sipeed/polychat/pkg/status"
	"github.com/sipeed/polychat/pkg/transcript"
	"github.com/sipeed/polychat/pkg/usage"
)

const helpText = `Commands:
  /mode chat|image|video   switch generation mode
  /attach <path>           add a file to the next message
  /drop <n>                remove pending attachment n
  /budget <n>              set the thinking budget (0 disables)
  /status                  show agent status, mode and pending files
  /history                 list the conversation
  /usage                   show generation call totals
  /save <path>             write the latest attachment to a file
  /help                    show this help
  /quit                    exit
Anything else is sent as a message.`

type Console struct {
	ctrl   *agent.Controller
	usage  *usage.Store
	out    io.Writer
	open   func(path string) (*attachments.File, error)
	styles *Styles
}

// New builds a console writing plain text to out. usageStore may be nil.
func New(ctrl *agent.Controller, usageStore *usage.Store, out io.Writer) *Console {
	return &Console{
		ctrl:  ctrl,
		usage: usageStore,
		out:   out,
		open:  attachments.OpenFile,
	}
}

// Run reads lines until /quit, EOF or ctx ends.
func (c *Console) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()
	c.out = rl.Stdout()
	styles := NewStyles(DefaultTheme)
	c.styles = &styles

	cancel := c.ctrl.StatusRegister().OnChange(func(_, next status.Status) {
		switch next {
		case status.Idle:
		case status.Error:
			fmt.Fprintln(c.out, c.paint(styles.Alert, agent.StatusLine(next, c.ctrl.Mode())))
		default:
			fmt.Fprintln(c.out, c.paint(styles.Status, agent.StatusLine(next, c.ctrl.Mode())))
		}
	})
	defer cancel()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(c.out, c.paint(styles.Title, "polychat")+" ready. Type /help for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if c.Handle(ctx, line) {
			return nil
		}
		rl.SetPrompt(c.prompt())
	}
}

func (c *Console) prompt() string {
	if n := len(c.ctrl.PendingAttachments()); n > 0 {
		return fmt.Sprintf("[%s +%d] > ", c.ctrl.Mode(), n)
	}
	return fmt.Sprintf("[%s] > ", c.ctrl.Mode())
}

// Handle executes one input line and reports whether the session should end.
func (c *Console) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		c.submit(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/mode":
		c.setMode(arg)
	case "/attach":
		c.attach(ctx, arg)
	case "/drop":
		c.drop(arg)
	case "/budget":
		c.setBudget(arg)
	case "/status":
		c.printStatus()
	case "/history":
		c.printHistory()
	case "/usage":
		c.printUsage()
	case "/save":
		c.save(ctx, arg)
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help.\n", cmd)
	}
	return false
}

func (c *Console) submit(ctx context.Context, text string) {
	before := c.ctrl.Transcript().Len()
	if !c.ctrl.Submit(ctx, text) {
		if c.ctrl.Status() != status.Idle {
			fmt.Fprintln(c.out, "Agent is busy, try again in a moment.")
		}
		return
	}
	msgs := c.ctrl.Messages()
	for _, m := range msgs[min(before+1, len(msgs)):] {
		c.printReply(m)
	}
}

func (c *Console) printReply(m transcript.Message) {
	if m.Content != "" {
		fmt.Fprintln(c.out, m.Content)
	}
	for _, a := range m.Attachments {
		fmt.Fprintln(c.out, c.detail(fmt.Sprintf("  ↳ %s %s", a.Type, displayURL(a.URL))))
	}
	for i, s := range m.GroundingSources {
		title := s.Title
		if title == "" {
			title = s.URI
		}
		fmt.Fprintln(c.out, c.detail(fmt.Sprintf("  [%d] %s %s", i+1, title, s.URI)))
	}
}

func (c *Console) detail(s string) string {
	if c.styles == nil {
		return s
	}
	return c.paint(c.styles.Detail, s)
}

// displayURL keeps inline data URLs from flooding the terminal.
func displayURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		mimeType, payload, _ := attachments.ParseDataURL(u)
		return fmt.Sprintf("(inline %s, %s base64 chars)", mimeType, usage.HumanCount(len(payload)))
	}
	return u
}

func (c *Console) setMode(arg string) {
	if arg == "" {
		fmt.Fprintf(c.out, "Mode: %s\n", c.ctrl.Mode())
		return
	}
	if err := c.ctrl.SetMode(arg); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Mode set to %s\n", arg)
}

func (c *Console) attach(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(c.out, "Usage: /attach <path>")
		return
	}
	f, err := c.open(path)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	att, err := c.ctrl.OnFileSelected(ctx, f)
	if err != nil {
		logger.WarnCF("console", "Attachment failed", map[string]interface{}{"path": path, "error": err.Error()})
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Attached %s as %s (%s)\n", att.Name, att.Type, att.MIMEType)
}

func (c *Console) drop(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || !c.ctrl.RemoveComposedAttachment(n-1) {
		fmt.Fprintf(c.out, "No pending attachment %q\n", arg)
		return
	}
	fmt.Fprintf(c.out, "Removed attachment %d\n", n)
}

func (c *Console) setBudget(arg string) {
	if arg == "" {
		fmt.Fprintf(c.out, "Thinking budget: %d\n", c.ctrl.ThinkingBudget())
		return
	}
	n, err := strconv.Atoi(arg)
	if err == nil {
		err = c.ctrl.SetThinkingBudget(n)
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: invalid budget %q\n", arg)
		return
	}
	if n == 0 {
		fmt.Fprintln(c.out, "Thinking disabled")
		return
	}
	fmt.Fprintf(c.out, "Thinking budget set to %s tokens\n", usage.GroupedInt(n))
}

func (c *Console) printStatus() {
	fmt.Fprintf(c.out, "Status: %s\nMode: %s\nThinking budget: %d\n",
		c.ctrl.Status(), c.ctrl.Mode(), c.ctrl.ThinkingBudget())
	pending := c.ctrl.PendingAttachments()
	if len(pending) == 0 {
		return
	}
	fmt.Fprintln(c.out, "Pending:")
	for i, a := range pending {
		fmt.Fprintf(c.out, "  %d. %s (%s)\n", i+1, a.Name, a.Type)
	}
}

func (c *Console) printHistory() {
	msgs := c.ctrl.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(c.out, "No messages yet.")
		return
	}
	for i, m := range msgs {
		fmt.Fprintln(c.out, agent.SummarizeMessage(i, m))
	}
}

func (c *Console) printUsage() {
	if c.usage == nil {
		fmt.Fprintln(c.out, "Usage tracking is off.")
		return
	}
	fmt.Fprintln(c.out, usage.FormatSummary(c.usage.Query(usage.Filter{})))
}

func (c *Console) save(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(c.out, "Usage: /save <path>")
		return
	}
	att, ok := latestAttachment(c.ctrl.Messages())
	if !ok {
		fmt.Fprintln(c.out, "No attachment to save.")
		return
	}
	data, err := c.ctrl.FetchAttachment(ctx, att)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		logger.WarnCF("console", "Save failed", map[string]interface{}{"path": path, "error": err.Error()})
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Saved %s (%s bytes) to %s\n", att.Type, usage.GroupedInt(len(data)), path)
}

func latestAttachment(msgs []transcript.Message) (attachments.Attachment, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if n := len(msgs[i].Attachments); n > 0 {
			return msgs[i].Attachments[n-1], true
		}
	}
	return attachments.Attachment{}, false
}
