package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/polychat/pkg/agent"
	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/console"
	"github.com/sipeed/polychat/pkg/feed"
	"github.com/sipeed/polychat/pkg/gateway"
	"github.com/sipeed/polychat/pkg/logger"
	"github.com/sipeed/polychat/pkg/status"
	"github.com/sipeed/polychat/pkg/transcript"
	"github.com/sipeed/polychat/pkg/usage"
)

const (
	defaultConfigPath = "~/.polychat/config.json"
	historyFile       = "~/.polychat/history"
	usageRecordLimit  = 1000
)

var (
	configPath   string
	modeFlag     string
	providerFlag string
	feedFlag     bool
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:           "polychat",
	Short:         "Chat, image and video generation from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := expandHome(configPath)
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nSet providers.gemini.api_key (or POLYCHAT_PROVIDERS_GEMINI_API_KEY) before chatting.\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file path")
	rootCmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "initial mode: chat, image or video")
	rootCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "generation provider: gemini, openai or anthropic")
	rootCmd.Flags().BoolVar(&feedFlag, "feed", false, "serve the live websocket feed")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "override logging.level")

	initCmd.Flags().Bool("force", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if modeFlag != "" {
		if !config.IsMode(modeFlag) {
			return nil, fmt.Errorf("%w: %q", agent.ErrUnknownMode, modeFlag)
		}
		cfg.Agent.DefaultMode = modeFlag
	}
	if providerFlag != "" {
		cfg.Gateway.Provider = providerFlag
	}
	if feedFlag {
		cfg.Feed.Enabled = true
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg *config.Config) {
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.FileEnabled {
		if err := logger.EnableFileLogging(cfg.LogFilePath()); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]interface{}{"error": err.Error()})
		}
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)
	defer logger.DisableFileLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(ctx, cfg)
	if err != nil {
		return err
	}
	usageStore := usage.NewStore(usageRecordLimit)
	metered := usage.NewMeter(gw, usageStore)

	previews := attachments.NewPreviewStore()
	ingestor := attachments.NewIngestor(previews)
	ts := transcript.NewStore(previews)
	reg := status.NewRegister()
	ctrl := agent.NewController(cfg.Agent, metered, ts, reg, ingestor)
	defer ctrl.Close()

	if cfg.Feed.Enabled {
		hub := feed.NewHub(ts, reg, previews)
		defer hub.Close()
		go func() {
			if err := hub.ListenAndServe(ctx, cfg.FeedAddr()); err != nil {
				logger.ErrorCF("feed", "Feed stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	logger.InfoCF("main", "Session started",
		map[string]interface{}{"mode": ctrl.Mode(), "provider": providerName(gw), "feed": cfg.Feed.Enabled})

	hist := expandHome(historyFile)
	if err := os.MkdirAll(filepath.Dir(hist), 0o755); err != nil {
		hist = ""
	}
	return console.New(ctrl, usageStore, cmd.OutOrStdout()).Run(ctx, hist)
}

func providerName(gw gateway.Gateway) string {
	if id, ok := gw.(gateway.Identity); ok {
		return id.Provider()
	}
	return "unknown"
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
