package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// KnownLiveProviders lists the live provider names with built-in
// registrations. Used by [Validate] to warn about unrecognised names.
var KnownLiveProviders = []string{"gemini-live"}

// EnvAPIKey is the environment variable consulted by [Load] and the
// [Watcher] when live.api_key is not set in the file.
const EnvAPIKey = "GEMINI_API_KEY"

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A missing credential is not a load error; sessions surface it
// when a caller tries to connect.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyEnvCredential(cfg)
	if cfg.Live.APIKey == "" {
		slog.Warn("no API credential configured; sessions will fail to connect",
			"env", EnvAPIKey,
		)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals. Unlike [Load] it never consults the environment.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Live provider name validation warns rather than errors so that
	// externally registered providers still load.
	if name := cfg.Live.Provider; name != "" && !slices.Contains(KnownLiveProviders, name) {
		slog.Warn("unknown live provider name; may be a typo or an external registration",
			"name", name,
			"known", KnownLiveProviders,
		)
	}

	// Tool duplicate name detection
	toolNamesSeen := make(map[string]int, len(cfg.Agent.Tools))

	for i, tool := range cfg.Agent.Tools {
		prefix := fmt.Sprintf("agent.tools[%d]", i)
		if tool.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := toolNamesSeen[tool.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of agent.tools[%d]", prefix, tool.Name, prev))
			}
			toolNamesSeen[tool.Name] = i
		}
		if tool.Name != "" && tool.Description == "" {
			slog.Warn("tool has no description; the model may never call it",
				"tool", tool.Name,
			)
		}
	}

	return errors.Join(errs...)
}

// applyEnvCredential fills live.api_key from the environment when the file
// leaves it empty.
func applyEnvCredential(cfg *Config) {
	if cfg.Live.APIKey == "" {
		cfg.Live.APIKey = os.Getenv(EnvAPIKey)
	}
}
