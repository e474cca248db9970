package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

// Generation modes selectable from the UI.
const (
	ModeChat  = "chat"
	ModeImage = "image"
	ModeVideo = "video"
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Gateway   GatewayConfig   `json:"gateway"`
	Providers ProvidersConfig `json:"providers"`
	Feed      FeedConfig      `json:"feed"`
	Logging   LoggingConfig   `json:"logging"`
	mu        sync.RWMutex
}

type AgentConfig struct {
	DefaultMode    string `json:"default_mode" env:"POLYCHAT_AGENT_DEFAULT_MODE"`
	ThinkingBudget int    `json:"thinking_budget" env:"POLYCHAT_AGENT_THINKING_BUDGET"`
}

type GatewayConfig struct {
	Provider         string `json:"provider" env:"POLYCHAT_GATEWAY_PROVIDER"`
	ChatModel        string `json:"chat_model" env:"POLYCHAT_GATEWAY_CHAT_MODEL"`
	ImageModel       string `json:"image_model" env:"POLYCHAT_GATEWAY_IMAGE_MODEL"`
	VideoModel       string `json:"video_model" env:"POLYCHAT_GATEWAY_VIDEO_MODEL"`
	TimeoutSeconds   int    `json:"timeout_seconds" env:"POLYCHAT_GATEWAY_TIMEOUT_SECONDS"`
	VideoPollSeconds int    `json:"video_poll_seconds" env:"POLYCHAT_GATEWAY_VIDEO_POLL_SECONDS"`
	MaxOutputTokens  int    `json:"max_output_tokens" env:"POLYCHAT_GATEWAY_MAX_OUTPUT_TOKENS"`
}

type ProvidersConfig struct {
	Gemini    ProviderConfig `json:"gemini"`
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
}

// ProviderConfig is shared by every provider, so env bindings for it are
// applied by applyProviderEnvOverrides rather than struct tags.
type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base,omitempty"`
}

type FeedConfig struct {
	Enabled bool   `json:"enabled" env:"POLYCHAT_FEED_ENABLED"`
	Host    string `json:"host" env:"POLYCHAT_FEED_HOST"`
	Port    int    `json:"port" env:"POLYCHAT_FEED_PORT"`
}

type LoggingConfig struct {
	Level       string `json:"level" env:"POLYCHAT_LOGGING_LEVEL"`
	FileEnabled bool   `json:"file_enabled" env:"POLYCHAT_LOGGING_FILE_ENABLED"`
	FilePath    string `json:"file_path" env:"POLYCHAT_LOGGING_FILE_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			DefaultMode:    ModeChat,
			ThinkingBudget: 0,
		},
		Gateway: GatewayConfig{
			Provider:         "",
			ChatModel:        "gemini-2.5-flash",
			ImageModel:       "imagen-4.0-generate-001",
			VideoModel:       "veo-3.0-fast-generate-001",
			TimeoutSeconds:   600,
			VideoPollSeconds: 10,
			MaxOutputTokens:  8192,
		},
		Providers: ProvidersConfig{
			Gemini:    ProviderConfig{},
			OpenAI:    ProviderConfig{},
			Anthropic: ProviderConfig{},
		},
		Feed: FeedConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    18800,
		},
		Logging: LoggingConfig{
			Level:       "info",
			FileEnabled: false,
			FilePath:    "~/.polychat/polychat.log",
		},
	}
}

// LoadConfig reads path over the defaults, then applies env overrides.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(expandHome(path))
		switch {
		case err == nil:
			if isYAML(path) {
				if data, err = yaml.YAMLToJSON(data); err != nil {
					return nil, fmt.Errorf("parse config %s: %w", path, err)
				}
			}
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	applyProviderEnvOverrides(cfg)
	resolveProviderEnvRefs(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the controller cannot act on.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !IsMode(c.Agent.DefaultMode) {
		return fmt.Errorf("agent.default_mode %q: want chat, image or video", c.Agent.DefaultMode)
	}
	if c.Agent.ThinkingBudget < 0 {
		return fmt.Errorf("agent.thinking_budget must be >= 0, got %d", c.Agent.ThinkingBudget)
	}
	switch strings.ToLower(c.Gateway.Provider) {
	case "", "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("gateway.provider %q is not supported", c.Gateway.Provider)
	}
	if c.Feed.Enabled && (c.Feed.Port <= 0 || c.Feed.Port > 65535) {
		return fmt.Errorf("feed.port %d out of range", c.Feed.Port)
	}
	return nil
}

// IsMode reports whether m names a generation mode.
func IsMode(m string) bool {
	switch m {
	case ModeChat, ModeImage, ModeVideo:
		return true
	}
	return false
}

func applyProviderEnvOverrides(cfg *Config) {
	type providerEnvBinding struct {
		target  *ProviderConfig
		apiKey  string
		apiBase string
	}
	bindings := []providerEnvBinding{
		{target: &cfg.Providers.Gemini, apiKey: "POLYCHAT_PROVIDERS_GEMINI_API_KEY", apiBase: "POLYCHAT_PROVIDERS_GEMINI_API_BASE"},
		{target: &cfg.Providers.OpenAI, apiKey: "POLYCHAT_PROVIDERS_OPENAI_API_KEY", apiBase: "POLYCHAT_PROVIDERS_OPENAI_API_BASE"},
		{target: &cfg.Providers.Anthropic, apiKey: "POLYCHAT_PROVIDERS_ANTHROPIC_API_KEY", apiBase: "POLYCHAT_PROVIDERS_ANTHROPIC_API_BASE"},
	}

	for _, b := range bindings {
		if v := strings.TrimSpace(os.Getenv(b.apiKey)); v != "" {
			b.target.APIKey = v
		}
		if v := strings.TrimSpace(os.Getenv(b.apiBase)); v != "" {
			b.target.APIBase = v
		}
	}
}

func resolveProviderEnvRefs(cfg *Config) {
	for _, p := range []*ProviderConfig{
		&cfg.Providers.Gemini,
		&cfg.Providers.OpenAI,
		&cfg.Providers.Anthropic,
	} {
		p.APIKey = resolveEnvRef(p.APIKey)
		p.APIBase = resolveEnvRef(p.APIBase)
	}
}

// resolveEnvRef expands "$VAR" and "${VAR}"; unset variables are left as is.
func resolveEnvRef(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return v
	}
	var key string
	switch {
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		key = strings.TrimSpace(s[2 : len(s)-1])
	case strings.HasPrefix(s, "$") && len(s) > 1:
		key = strings.TrimSpace(s[1:])
	default:
		return v
	}
	if key == "" {
		return v
	}
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return v
}

// isYAML picks the file format from the extension; anything else is JSON.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// SaveConfig writes cfg as YAML or JSON depending on the extension of path.
func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if isYAML(path) {
		if data, err = yaml.JSONToYAML(data); err != nil {
			return err
		}
	}

	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ProviderFor returns the credentials block for a provider name.
func (c *Config) ProviderFor(name string) ProviderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch strings.ToLower(name) {
	case "openai":
		return c.Providers.OpenAI
	case "anthropic":
		return c.Providers.Anthropic
	default:
		return c.Providers.Gemini
	}
}

// FeedAddr is the host:port the live feed listens on.
func (c *Config) FeedAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Feed.Host, c.Feed.Port)
}

// LogFilePath returns the log file path with ~ expanded.
func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Logging.FilePath)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
