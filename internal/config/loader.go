package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result: fields absent from the document keep their default values, and
// an empty document yields the defaults unchanged. Unknown fields are
// rejected. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Conditions that degrade but do not break the assistant are logged instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Agent
	if cfg.Agent.URL == "" {
		errs = append(errs, errors.New("agent.url is required"))
	} else if !strings.HasPrefix(cfg.Agent.URL, "ws://") && !strings.HasPrefix(cfg.Agent.URL, "wss://") {
		errs = append(errs, fmt.Errorf("agent.url %q must be a ws:// or wss:// endpoint", cfg.Agent.URL))
	}
	if cfg.Agent.APIKeyEnv == "" {
		errs = append(errs, errors.New("agent.api_key_env is required"))
	}
	errs = append(errs, validateModel("agent.listen", cfg.Agent.Listen)...)
	errs = append(errs, validateModel("agent.think", cfg.Agent.Think)...)
	errs = append(errs, validateModel("agent.speak", cfg.Agent.Speak)...)
	if cfg.Agent.Prompt == "" {
		slog.Warn("agent.prompt is empty; the agent will run with only the dated context preamble")
	}
	if cfg.Agent.Greeting == "" {
		slog.Warn("agent.greeting is empty; the session will start silent")
	}

	// Audio
	if cfg.Audio.InputEncoding != EncodingLinear16 {
		errs = append(errs, fmt.Errorf("audio.input_encoding %q is invalid; only %q is supported", cfg.Audio.InputEncoding, EncodingLinear16))
	}
	if cfg.Audio.OutputEncoding != EncodingLinear16 {
		errs = append(errs, fmt.Errorf("audio.output_encoding %q is invalid; only %q is supported", cfg.Audio.OutputEncoding, EncodingLinear16))
	}
	if cfg.Audio.InputSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.input_sample_rate %d must be positive", cfg.Audio.InputSampleRate))
	}
	if cfg.Audio.OutputSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.output_sample_rate %d must be positive", cfg.Audio.OutputSampleRate))
	}
	if cfg.Audio.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d must be positive", cfg.Audio.FramesPerBuffer))
	}

	// Calendar
	if cfg.Calendar.TokenFile == "" {
		errs = append(errs, errors.New("calendar.token_file is required"))
	}
	if cfg.Calendar.CalendarID == "" {
		errs = append(errs, errors.New("calendar.calendar_id is required"))
	}
	if cfg.Calendar.TimeZone == "" {
		errs = append(errs, errors.New("calendar.time_zone is required"))
	}
	if cfg.Calendar.CredentialsFile == "" {
		slog.Warn("calendar.credentials_file is empty; `voxcal -authorize` will not be able to mint a token")
	}

	// Ledger
	if cfg.Ledger.DSN == "" {
		slog.Info("ledger.dsn is empty; bookings will not be recorded")
	}

	return errors.Join(errs...)
}

// validateModel checks one agent model block.
func validateModel(prefix string, m ModelConfig) []error {
	var errs []error
	if m.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", prefix))
	}
	if m.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", prefix))
	}
	return errs
}
