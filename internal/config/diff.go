package config

import "reflect"

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields are tracked individually; anything that needs a process restart
// lands in RestartRequired.
type ConfigDiff struct {
	// LogLevelChanged is set when server.log_level differs. The new level
	// takes effect immediately.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AgentChanged is set when any agent field differs (name, instructions,
	// greeting, tools). Agent changes apply to the next call; a call in
	// progress keeps its persona.
	AgentChanged bool

	// LiveChanged is set when any live provider field differs. Like agent
	// changes, these apply to the next call.
	LiveChanged bool

	// RestartRequired lists fields that cannot be hot-reloaded
	// (e.g., "server.listen_addr").
	RestartRequired []string
}

// HasChanges reports whether d records any difference at all.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.AgentChanged || d.LiveChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Fields baked into the listener at startup.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}

	if old.Live != new.Live {
		d.LiveChanged = true
	}

	if old.Agent.Name != new.Agent.Name ||
		old.Agent.Instructions != new.Agent.Instructions ||
		old.Agent.Greeting != new.Agent.Greeting ||
		!reflect.DeepEqual(old.Agent.Tools, new.Agent.Tools) {
		d.AgentChanged = true
	}

	return d
}
