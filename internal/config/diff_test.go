package config_test

import (
	"testing"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Live:   config.LiveConfig{Provider: "gemini-live", Voice: "Puck"},
		Agent:  config.AgentConfig{Name: "Sam", Greeting: "Hi!"},
	}
	d := config.Diff(cfg, cfg)
	if d.HasChanges() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.AgentChanged || d.LiveChanged || len(d.RestartRequired) != 0 {
		t.Errorf("only the log level should differ, got %+v", d)
	}
}

func TestDiff_AgentInstructionsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Agent: config.AgentConfig{Instructions: "be brief"}}
	new := &config.Config{Agent: config.AgentConfig{Instructions: "be thorough"}}

	d := config.Diff(old, new)
	if !d.AgentChanged {
		t.Error("expected AgentChanged=true")
	}
	if d.LiveChanged {
		t.Error("expected LiveChanged=false")
	}
}

func TestDiff_AgentToolsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Agent: config.AgentConfig{
		Tools: []config.ToolConfig{{Name: "kb_search"}},
	}}
	new := &config.Config{Agent: config.AgentConfig{
		Tools: []config.ToolConfig{{Name: "kb_search"}, {Name: "book_meeting"}},
	}}

	d := config.Diff(old, new)
	if !d.AgentChanged {
		t.Error("expected AgentChanged=true when tools change")
	}
}

func TestDiff_LiveVoiceChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Live: config.LiveConfig{Voice: "Puck"}}
	new := &config.Config{Live: config.LiveConfig{Voice: "Aoede"}}

	d := config.Diff(old, new)
	if !d.LiveChanged {
		t.Error("expected LiveChanged=true")
	}
	if d.AgentChanged {
		t.Error("expected AgentChanged=false")
	}
}

func TestDiff_ListenAddrRequiresRestart(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{ListenAddr: ":8080"}}
	new := &config.Config{Server: config.ServerConfig{ListenAddr: ":9090"}}

	d := config.Diff(old, new)
	if len(d.RestartRequired) != 1 || d.RestartRequired[0] != "server.listen_addr" {
		t.Errorf("expected RestartRequired=[server.listen_addr], got %v", d.RestartRequired)
	}
}

func TestDiff_TLSRequiresRestart(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{Server: config.ServerConfig{
		TLS: &config.TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"},
	}}

	d := config.Diff(old, new)
	found := false
	for _, f := range d.RestartRequired {
		if f == "server.tls" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected server.tls in RestartRequired, got %v", d.RestartRequired)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Live:   config.LiveConfig{Voice: "Puck"},
		Agent:  config.AgentConfig{Greeting: "Hi!"},
	}
	new := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":9090", LogLevel: config.LogWarn},
		Live:   config.LiveConfig{Voice: "Aoede"},
		Agent:  config.AgentConfig{Greeting: "Hello there!"},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.LiveChanged {
		t.Error("expected LiveChanged=true")
	}
	if !d.AgentChanged {
		t.Error("expected AgentChanged=true")
	}
	if len(d.RestartRequired) != 1 {
		t.Errorf("expected 1 restart-required field, got %v", d.RestartRequired)
	}
	if !d.HasChanges() {
		t.Error("HasChanges should be true")
	}
}
