// Package config provides the configuration schema, loader, and provider
// registry for the SDR voice server.
package config

import "log/slog"

// LogLevel controls log verbosity for the SDR server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the corresponding slog level. Empty or unrecognised
// values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Defaults applied by [ApplyDefaults] when the corresponding field is unset.
const (
	DefaultListenAddr = ":8080"
	DefaultProvider   = "gemini-live"
	DefaultVoice      = "Puck"
)

// Config is the root configuration structure for the SDR server.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Live   LiveConfig   `yaml:"live"`
	Agent  AgentConfig  `yaml:"agent"`
}

// ServerConfig holds network and logging settings for the SDR server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// LiveConfig selects and configures the realtime speech provider.
// The Provider field is used to look up the constructor in the [Registry].
type LiveConfig struct {
	// Provider selects the registered live provider implementation
	// (e.g., "gemini-live").
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider's API. When empty, [Load]
	// falls back to the GEMINI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Model selects a specific realtime model within the provider.
	// Leave empty to use the provider's built-in default.
	Model string `yaml:"model"`

	// Voice is the provider voice name used for the agent's speech.
	Voice string `yaml:"voice"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`
}

// AgentConfig describes the persona the server presents to callers.
type AgentConfig struct {
	// Name is the display name the agent introduces itself with.
	Name string `yaml:"name"`

	// Instructions is the system prompt defining the agent's persona and
	// conversation goals. Leave empty to use the built-in SDR persona.
	Instructions string `yaml:"instructions"`

	// Greeting is an optional opening line injected into the conversation
	// as soon as a caller connects.
	Greeting string `yaml:"greeting"`

	// Tools declares extra tools offered to the model in addition to the
	// built-in lead capture tool. A tool named like the built-in one
	// replaces its declaration.
	Tools []ToolConfig `yaml:"tools"`
}

// ToolConfig declares a single tool exposed to the model.
type ToolConfig struct {
	// Name is the function name the model invokes the tool by.
	Name string `yaml:"name"`

	// Description tells the model what the tool does and when to call it.
	Description string `yaml:"description"`

	// Parameters is a JSON-schema object describing the tool's arguments.
	Parameters map[string]any `yaml:"parameters"`
}

// ApplyDefaults fills unset fields of cfg with their default values.
// It is called by [LoadFromReader] before validation.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Live.Provider == "" {
		cfg.Live.Provider = DefaultProvider
	}
	if cfg.Live.Voice == "" {
		cfg.Live.Voice = DefaultVoice
	}
}
