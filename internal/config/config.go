package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for botpilot.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Server     ServerConfig     `json:"server"`
	Lark       LarkConfig       `json:"lark"`
	LLM        LLMConfig        `json:"llm"`
	Analytics  AnalyticsConfig  `json:"analytics"`
	Dedup      DedupConfig      `json:"dedup"`
	Transcript TranscriptConfig `json:"transcript"`
	Commands   CommandsConfig   `json:"commands"`
}

type GeneralConfig struct {
	LogLevel           string `json:"logLevel"`
	BotName            string `json:"botName"`
	ThinkingMessage    string `json:"thinkingMessage"`
	MaxContextMessages int    `json:"maxContextMessages"` // exchanges kept per conversation; window is 2x this
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	CallbackPath string `json:"callbackPath"`
}

// LarkConfig holds the messaging-platform credentials. EncryptKey doubles as
// the webhook signing secret; when empty, signature checks are skipped.
type LarkConfig struct {
	AppID             string `json:"appId"`
	AppSecret         string `json:"appSecret"`
	EncryptKey        string `json:"encryptKey,omitempty"`
	VerificationToken string `json:"verificationToken,omitempty"`
}

type LLMConfig struct {
	APIKey      string  `json:"apiKey"`
	APIBase     string  `json:"apiBase"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type AnalyticsConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type DedupConfig struct {
	Capacity int `json:"capacity"`
}

type TranscriptConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// CommandsConfig points at an optional YAML file with extra canned commands
// merged on top of the built-in set.
type CommandsConfig struct {
	File string `json:"file,omitempty"`
}

// DefaultConfigDir returns ~/.botpilot (or a relative fallback).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".botpilot"
	}
	return filepath.Join(home, ".botpilot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads and parses a config file, applying defaults for missing fields
// and substituting ${VAR} / ${VAR:-default} environment references.
func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Transcript.DBPath = expandPath(cfg.Transcript.DBPath)
	cfg.Commands.File = expandPath(cfg.Commands.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars substitutes environment variable references in the raw config.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks config invariants and reports all violations at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.CallbackPath, "/") {
		errs = append(errs, "server.callbackPath must start with /")
	}
	if cfg.General.MaxContextMessages < 1 || cfg.General.MaxContextMessages > 100 {
		errs = append(errs, "general.maxContextMessages must be between 1 and 100")
	}
	if cfg.Dedup.Capacity < 1 {
		errs = append(errs, "dedup.capacity must be >= 1")
	}
	if cfg.LLM.MaxTokens < 1 {
		errs = append(errs, "llm.maxTokens must be >= 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if cfg.Analytics.TimeoutSeconds < 1 {
		errs = append(errs, "analytics.timeoutSeconds must be >= 1")
	}
	if cfg.Transcript.Enabled && cfg.Transcript.DBPath == "" {
		errs = append(errs, "transcript.dbPath is required when transcript.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
