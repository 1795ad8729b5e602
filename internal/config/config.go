package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every runtime setting of the relay service.
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Gemini   GeminiConfig
	Relay    RelayConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// AuthConfig carries the shared secret used to verify bearer tokens.
type AuthConfig struct {
	SigningSecret string
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	URL         string
	UseInMemory bool
}

// GeminiConfig describes the upstream generation endpoint and its credential pool.
type GeminiConfig struct {
	APIKeys []string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// RelayConfig carries relay policy knobs.
type RelayConfig struct {
	SystemPromptPath string
	FreeDailyLimit   int
	HistoryLimit     int
}

// Load reads configuration from environment variables. A missing credential
// pool is startup-fatal; everything else has a workable default.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("JWT_SECRET", "super_secret_for_dev_only")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("GEMINI_TIMEOUT_SECONDS", 30)
	v.SetDefault("SYSTEM_PROMPT_PATH", "system_prompt.txt")
	v.SetDefault("FREE_DAILY_LIMIT", 5)
	v.SetDefault("HISTORY_LIMIT", 20)

	keys := splitKeys(v.GetString("GEMINI_API_KEYS"))
	if len(keys) == 0 {
		return nil, errors.New("GEMINI_API_KEYS must contain at least one key")
	}

	useInMemory := v.GetBool("USE_IN_MEMORY")
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if !useInMemory && dbURL == "" {
		return nil, errors.New("DATABASE_URL must be set unless USE_IN_MEMORY=true")
	}

	addr, err := listenAddr(v.GetString("PORT"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{Addr: addr},
		Auth:   AuthConfig{SigningSecret: v.GetString("JWT_SECRET")},
		Database: DatabaseConfig{
			URL:         dbURL,
			UseInMemory: useInMemory,
		},
		Gemini: GeminiConfig{
			APIKeys: keys,
			Model:   v.GetString("GEMINI_MODEL"),
			BaseURL: v.GetString("GEMINI_BASE_URL"),
			Timeout: time.Duration(v.GetInt("GEMINI_TIMEOUT_SECONDS")) * time.Second,
		},
		Relay: RelayConfig{
			SystemPromptPath: v.GetString("SYSTEM_PROMPT_PATH"),
			FreeDailyLimit:   v.GetInt("FREE_DAILY_LIMIT"),
			HistoryLimit:     v.GetInt("HISTORY_LIMIT"),
		},
	}, nil
}

// listenAddr accepts either a bare port or a full listen address.
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		return "", errors.New("PORT must not be empty")
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

// splitKeys parses the comma-separated credential pool, dropping blanks.
func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
