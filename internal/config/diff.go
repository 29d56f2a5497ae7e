package config

// AgentDiff describes what changed between two configs, split by how the
// change can be applied. Prompt and speak-model changes are pushed to the
// live session; a greeting change takes effect on the next session; a
// log-level change is applied to the process logger; anything else requires
// a restart.
type AgentDiff struct {
	PromptChanged     bool
	GreetingChanged   bool
	SpeakModelChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired is set when a field outside the hot-reloadable set
	// changed.
	RestartRequired bool
}

// Changed reports whether the diff carries any change at all.
func (d AgentDiff) Changed() bool {
	return d.PromptChanged || d.GreetingChanged || d.SpeakModelChanged ||
		d.LogLevelChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) AgentDiff {
	d := AgentDiff{}

	if old.Agent.Prompt != new.Agent.Prompt {
		d.PromptChanged = true
	}
	if old.Agent.Greeting != new.Agent.Greeting {
		d.GreetingChanged = true
	}
	if old.Agent.Speak != new.Agent.Speak {
		d.SpeakModelChanged = true
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Blank the hot-reloadable fields and compare the remainder wholesale.
	o, n := *old, *new
	o.Agent.Prompt, n.Agent.Prompt = "", ""
	o.Agent.Greeting, n.Agent.Greeting = "", ""
	o.Agent.Speak, n.Agent.Speak = ModelConfig{}, ModelConfig{}
	o.Server.LogLevel, n.Server.LogLevel = "", ""
	if o != n {
		d.RestartRequired = true
	}

	return d
}
