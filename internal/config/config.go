package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API   APIConfig   `yaml:"api"`
	Chat  ChatConfig  `yaml:"chat"`
	Store StoreConfig `yaml:"store"`
	Tools ToolsConfig `yaml:"tools"`
	Log   LogConfig   `yaml:"log"`
}

type APIConfig struct {
	BaseURL    string `yaml:"baseURL"`    // default "https://api.x.ai/v1"
	Model      string `yaml:"model"`      // default "grok-code-fast-1"
	MaxTokens  int    `yaml:"maxTokens"`  // default 1024
	MaxRetries int    `yaml:"maxRetries"` // default 2
}

type ChatConfig struct {
	MaxHistory       int    `yaml:"maxHistory"` // non-system messages kept; default 20
	WrapWidth        int    `yaml:"wrapWidth"`  // default 190, 0 = terminal width
	Session          string `yaml:"session"`    // default "context"
	SystemPrompt     string `yaml:"systemPrompt,omitempty"`
	SystemPromptFile string `yaml:"systemPromptFile,omitempty"`
	ShowReasoning    bool   `yaml:"showReasoning"`
}

type StoreConfig struct {
	Type    string `yaml:"type"`    // "file" or "bolt"
	DataDir string `yaml:"dataDir"` // default "~/.grok-terminal"
}

type ToolsConfig struct {
	Shell          string `yaml:"shell"`          // default "bash", falls back to "sh"
	CommandTimeout int    `yaml:"commandTimeout"` // seconds, default 120
	MaxOutputBytes int    `yaml:"maxOutputBytes"` // default 65536
}

type LogConfig struct {
	Level  string `yaml:"level"`  // default "warn"
	Format string `yaml:"format"` // "console" or "json"
	Output string `yaml:"output"` // "stderr", "stdout" or a file path
}

// API key environment variables, in lookup order.
const (
	EnvAPIKey         = "GROK_API_KEY"
	EnvAPIKeyFallback = "XAI_API_KEY"
)

// ErrMissingAPIKey is returned when neither API key variable is set.
var ErrMissingAPIKey = errors.New(EnvAPIKey + " or " + EnvAPIKeyFallback + " environment variable not set\n" +
	"Export your API key: export " + EnvAPIKey + "='your-key-here'")

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.x.ai/v1",
			Model:      "grok-code-fast-1",
			MaxTokens:  1024,
			MaxRetries: 2,
		},
		Chat: ChatConfig{
			MaxHistory: 20,
			WrapWidth:  190,
			Session:    "context",
		},
		Store: StoreConfig{
			Type:    "file",
			DataDir: defaultDataDir(),
		},
		Tools: ToolsConfig{
			Shell:          "bash",
			CommandTimeout: 120,
			MaxOutputBytes: 64 * 1024,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Store.DataDir = expandHome(cfg.Store.DataDir)
	cfg.Chat.SystemPromptFile = expandHome(cfg.Chat.SystemPromptFile)
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.API.Model == "":
		return errors.New("api.model must not be empty")
	case c.API.MaxTokens < 0:
		return errors.New("api.maxTokens must not be negative")
	case c.API.MaxRetries < 0:
		return errors.New("api.maxRetries must not be negative")
	case c.Chat.MaxHistory < 1:
		return errors.New("chat.maxHistory must be at least 1")
	case c.Chat.WrapWidth < 0:
		return errors.New("chat.wrapWidth must not be negative")
	case c.Chat.Session == "" || strings.ContainsAny(c.Chat.Session, `/\`):
		return fmt.Errorf("chat.session %q must be a plain name", c.Chat.Session)
	case c.Store.Type != "file" && c.Store.Type != "bolt":
		return fmt.Errorf("store.type %q must be file or bolt", c.Store.Type)
	case c.Tools.CommandTimeout < 0:
		return errors.New("tools.commandTimeout must not be negative")
	case c.Tools.MaxOutputBytes < 0:
		return errors.New("tools.maxOutputBytes must not be negative")
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// DBPath returns the full path to the BoltDB file (DataDir + "/grokterm.db").
func (c *Config) DBPath() string {
	return filepath.Join(c.Store.DataDir, "grokterm.db")
}

// LogPath returns the resolved log output: "stderr", "stdout" or a file path.
func (c *Config) LogPath() string {
	switch c.Log.Output {
	case "", "stderr":
		return "stderr"
	case "stdout":
		return "stdout"
	default:
		return expandHome(c.Log.Output)
	}
}

// SystemInstruction returns the system prompt: the configured file, then the
// inline prompt, then the built-in default.
func (c *Config) SystemInstruction() (string, error) {
	if c.Chat.SystemPromptFile != "" {
		raw, err := os.ReadFile(c.Chat.SystemPromptFile)
		if err != nil {
			return "", fmt.Errorf("reading system prompt: %w", err)
		}
		return string(raw), nil
	}
	if c.Chat.SystemPrompt != "" {
		return c.Chat.SystemPrompt, nil
	}
	return DefaultSystemPrompt, nil
}

// APIKeyFromEnv returns the bearer token from GROK_API_KEY, falling back to
// XAI_API_KEY.
func APIKeyFromEnv() (string, error) {
	for _, name := range []string{EnvAPIKey, EnvAPIKeyFallback} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", ErrMissingAPIKey
}

// defaultDataDir resolves the default data directory.
// It uses os.UserHomeDir() + "/.grok-terminal", falling back to
// "/tmp/grok-terminal" if the home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "grok-terminal")
	}
	return filepath.Join(home, ".grok-terminal")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
