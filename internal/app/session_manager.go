package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxcal/internal/booking"
	"github.com/MrWong99/voxcal/internal/config"
	"github.com/MrWong99/voxcal/internal/funcs"
	"github.com/MrWong99/voxcal/internal/funcs/endsession"
	"github.com/MrWong99/voxcal/internal/observe"
	"github.com/MrWong99/voxcal/internal/schedule"
	"github.com/MrWong99/voxcal/pkg/audio"
	"github.com/MrWong99/voxcal/pkg/provider/voice"
)

// Default reconnection and dispatch parameters.
const (
	defaultMaxRetries      = 10
	defaultBackoff         = 1 * time.Second
	defaultMaxBackoff      = 30 * time.Second
	defaultDispatchTimeout = 30 * time.Second
)

// Sentinel errors distinguishing how a session run ended. conversationDone
// and sessionLost drive the outer loop; device errors are fatal because a
// vanished microphone or speaker cannot be fixed by reconnecting.
var (
	errConversationDone = errors.New("session: conversation ended")
	errSessionLost      = errors.New("session: agent closed the connection")
	errMicrophoneLost   = errors.New("session: microphone stream closed")
	errPlaybackFailed   = errors.New("session: playback device failed")
)

// SessionManager runs the voice session loop: it opens the capture and
// playback devices once, then connects to the agent and pumps audio and
// events until the conversation ends, the devices fail, or the context is
// cancelled. A dropped agent connection is reconnected with exponential
// backoff while the devices stay open.
//
// Prompt, greeting, and speak-model changes can be applied mid-run via
// [SessionManager.ApplyConfig]. All exported methods are safe for concurrent
// use.
type SessionManager struct {
	cfg      *config.Config
	provider voice.Provider
	platform audio.Platform
	registry *funcs.Registry
	booking  *booking.Service
	metrics  *observe.Metrics
	now      func() time.Time

	maxRetries      int
	backoff         time.Duration
	maxBackoff      time.Duration
	dispatchTimeout time.Duration

	// mu guards the hot-reloadable agent settings and the live session.
	mu       sync.Mutex
	prompt   string
	greeting string
	speak    config.ModelConfig
	sess     voice.SessionHandle
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// Config supplies audio formats, agent models, and the calendar timezone
	// label for the prompt preamble.
	Config *config.Config

	// Provider opens agent sessions.
	Provider voice.Provider

	// Platform opens the capture and playback devices.
	Platform audio.Platform

	// Registry serves function definitions and dispatches agent calls.
	Registry *funcs.Registry

	// Booking receives the session id so ledger records carry it.
	Booking *booking.Service

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now overrides the clock used for prompt rendering and session ids.
	// Defaults to the current time in the fixed operating timezone.
	Now func() time.Time

	// MaxRetries is the number of reconnection attempts before giving up.
	// Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial delay between reconnection attempts. Doubles
	// each attempt up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on the backoff delay. Defaults to 30s if
	// zero.
	MaxBackoff time.Duration

	// DispatchTimeout bounds the execution of one agent function call.
	// Defaults to 30s if zero.
	DispatchTimeout time.Duration
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	dispatchTimeout := cfg.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = defaultDispatchTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().In(schedule.Kolkata) }
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &SessionManager{
		cfg:             cfg.Config,
		provider:        cfg.Provider,
		platform:        cfg.Platform,
		registry:        cfg.Registry,
		booking:         cfg.Booking,
		metrics:         metrics,
		now:             now,
		maxRetries:      maxRetries,
		backoff:         backoff,
		maxBackoff:      maxBackoff,
		dispatchTimeout: dispatchTimeout,
		prompt:          cfg.Config.Agent.Prompt,
		greeting:        cfg.Config.Agent.Greeting,
		speak:           cfg.Config.Agent.Speak,
	}
}

// Run opens the audio devices, then connects to the agent and serves the
// conversation until it ends. It blocks until the conversation is closed by
// the agent (returns nil), the devices fail, reconnection gives up, or ctx is
// cancelled (returns the context error).
func (m *SessionManager) Run(ctx context.Context) error {
	source, err := m.platform.OpenSource(m.cfg.Audio.InputSampleRate, m.cfg.Audio.FramesPerBuffer)
	if err != nil {
		return fmt.Errorf("session: open capture device: %w", err)
	}
	defer source.Close()

	sink, err := m.platform.OpenSink(m.cfg.Audio.OutputSampleRate)
	if err != nil {
		return fmt.Errorf("session: open playback device: %w", err)
	}
	defer sink.Close()

	// Devices outlive individual agent sessions: frames captured while a
	// reconnect is in flight are dropped by the pre-ready gate rather than
	// by tearing the stream down.
	frames := audio.ConvertStream(source.Frames(), audio.Format{
		SampleRate: m.cfg.Audio.InputSampleRate,
		Channels:   1,
	})

	currentBackoff := m.backoff
	attempt := 0

	for {
		ready, err := m.runSession(ctx, frames, sink)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			return nil
		case errors.Is(err, errMicrophoneLost), errors.Is(err, errPlaybackFailed):
			return err
		}

		// A session that reached ready resets the retry budget: the service
		// was reachable, so this drop starts a fresh outage.
		if ready {
			attempt = 0
			currentBackoff = m.backoff
		}

		attempt++
		if attempt > m.maxRetries {
			slog.Error("reconnection failed after max retries",
				"max_retries", m.maxRetries,
				"error", err,
			)
			return fmt.Errorf("session: reconnect failed after %d attempts: %w", m.maxRetries, err)
		}

		slog.Warn("agent session lost, attempting reconnection",
			"attempt", attempt,
			"max_retries", m.maxRetries,
			"backoff", currentBackoff,
			"error", err,
		)
		m.metrics.RecordReconnect(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(currentBackoff):
		}

		currentBackoff *= 2
		if currentBackoff > m.maxBackoff {
			currentBackoff = m.maxBackoff
		}
	}
}

// runSession connects one agent session and pumps it until it ends. The
// returned bool reports whether the session reached SettingsApplied; a nil
// error means the conversation is over and the loop should not reconnect.
func (m *SessionManager) runSession(ctx context.Context, frames <-chan audio.Frame, sink audio.Sink) (bool, error) {
	sess, err := m.provider.Connect(ctx, m.sessionConfig())
	if err != nil {
		return false, fmt.Errorf("session: connect agent: %w", err)
	}

	sessionID := "session-" + m.now().UTC().Format("20060102T150405Z")
	m.booking.SetSession(sessionID)
	log := slog.With("session_id", sessionID)
	log.Info("agent session opened")

	m.metrics.ActiveSessions.Add(ctx, 1)
	defer m.metrics.ActiveSessions.Add(ctx, -1)

	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.sess = nil
		m.mu.Unlock()
	}()

	// ready is closed on SettingsApplied; microphone audio sent earlier
	// would be discarded by the agent, so the mic pump gates on it.
	ready := make(chan struct{})

	// end is set once end_session has been dispatched successfully. The
	// session is closed after the goodbye finishes playing, not at dispatch
	// time, so the agent's parting words are not cut off.
	var end atomic.Bool

	sess.OnFunctionCall(func(name, args string) (string, error) {
		dctx, cancel := context.WithTimeout(context.Background(), m.dispatchTimeout)
		defer cancel()

		result, derr := m.registry.Dispatch(dctx, name, args)
		if derr != nil {
			log.Error("function call failed", "function", name, "error", derr)
			return "", derr
		}
		log.Info("function call handled", "function", name)
		if name == endsession.Name {
			end.Store(true)
		}
		return result, nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.pumpMic(gctx, sess, frames, ready) })
	g.Go(func() error { return m.pumpSpeech(gctx, sess, sink) })
	g.Go(func() error { return m.pumpEvents(gctx, log, sess, sink, ready, &end) })

	werr := g.Wait()
	_ = sess.Close()

	wasReady := false
	select {
	case <-ready:
		wasReady = true
	default:
	}

	switch {
	case errors.Is(werr, errConversationDone):
		log.Info("conversation ended, closing session")
		return wasReady, nil
	case ctx.Err() != nil:
		return wasReady, ctx.Err()
	case errors.Is(werr, errSessionLost):
		if terr := sess.Err(); terr != nil {
			return wasReady, fmt.Errorf("%w: %v", errSessionLost, terr)
		}
		return wasReady, werr
	}
	return wasReady, werr
}

// pumpMic forwards captured frames to the agent. Frames arriving before the
// session is ready are dropped.
func (m *SessionManager) pumpMic(ctx context.Context, sess voice.SessionHandle, frames <-chan audio.Frame, ready <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return errMicrophoneLost
			}
			select {
			case <-ready:
			default:
				continue
			}
			if err := sess.SendAudio(frame.Data); err != nil {
				return fmt.Errorf("session: send microphone audio: %w", err)
			}
		}
	}
}

// pumpSpeech plays agent speech chunks as they arrive. A closed audio channel
// ends the pump cleanly; the event pump reports how the session ended.
func (m *SessionManager) pumpSpeech(ctx context.Context, sess voice.SessionHandle, sink audio.Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-sess.Audio():
			if !ok {
				return nil
			}
			if err := sink.Play(chunk); err != nil {
				return fmt.Errorf("%w: %v", errPlaybackFailed, err)
			}
		}
	}
}

// pumpEvents reacts to control events: it gates the mic on SettingsApplied,
// flushes playback on barge-in, relabels the booking session from Welcome,
// and ends the session after the goodbye once end_session was dispatched.
func (m *SessionManager) pumpEvents(ctx context.Context, log *slog.Logger, sess voice.SessionHandle, sink audio.Sink, ready chan struct{}, end *atomic.Bool) error {
	applied := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sess.Events():
			if !ok {
				if end.Load() {
					return errConversationDone
				}
				return errSessionLost
			}
			m.metrics.RecordSessionEvent(ctx, string(ev.Kind))

			switch ev.Kind {
			case voice.KindWelcome:
				log.Info("agent session accepted", "request_id", ev.RequestID)
				if ev.RequestID != "" {
					m.booking.SetSession(ev.RequestID)
				}
			case voice.KindSettingsApplied:
				if !applied {
					applied = true
					close(ready)
				}
				log.Info("agent ready, streaming microphone")
			case voice.KindConversationText:
				log.Info("conversation", "role", ev.Role, "content", ev.Content)
			case voice.KindUserStartedSpeaking:
				sink.Flush()
				log.Debug("user started speaking, flushed playback")
			case voice.KindAgentThinking:
				log.Debug("agent thinking", "content", ev.Content)
			case voice.KindAgentStartedSpeaking:
				log.Debug("agent started speaking")
			case voice.KindAgentAudioDone:
				if end.Load() {
					return errConversationDone
				}
				log.Debug("agent audio done")
			case voice.KindPromptUpdated:
				log.Info("prompt update applied")
			case voice.KindSpeakUpdated:
				log.Info("speak model update applied")
			case voice.KindWarning:
				log.Warn("agent warning", "description", ev.Description, "code", ev.Code)
			case voice.KindError:
				log.Error("agent error", "description", ev.Description, "code", ev.Code)
			default:
				log.Debug("unhandled agent event", "type", ev.Type)
			}
		}
	}
}

// sessionConfig renders the agent session settings from the current config
// and hot-reloadable fields. The prompt is re-rendered on every connect so a
// session opened after midnight reasons against the new date.
func (m *SessionManager) sessionConfig() voice.SessionConfig {
	m.mu.Lock()
	prompt, greeting, speak := m.prompt, m.greeting, m.speak
	m.mu.Unlock()

	a := m.cfg.Audio
	return voice.SessionConfig{
		InputEncoding:    a.InputEncoding,
		InputSampleRate:  a.InputSampleRate,
		OutputEncoding:   a.OutputEncoding,
		OutputSampleRate: a.OutputSampleRate,
		Listen:           toModel(m.cfg.Agent.Listen),
		Think:            toModel(m.cfg.Agent.Think),
		Speak:            toModel(speak),
		Prompt:           config.RenderPrompt(prompt, m.cfg.Calendar.TimeZone, m.now()),
		Greeting:         greeting,
		Functions:        m.registry.Definitions(),
	}
}

// ApplyConfig applies a config change to the manager. Prompt and speak-model
// changes are pushed to the live session when one is open; a greeting change
// takes effect on the next session.
func (m *SessionManager) ApplyConfig(d config.AgentDiff, cfg *config.Config) {
	m.mu.Lock()
	m.prompt = cfg.Agent.Prompt
	m.greeting = cfg.Agent.Greeting
	m.speak = cfg.Agent.Speak
	sess := m.sess
	m.mu.Unlock()

	if d.GreetingChanged {
		slog.Info("greeting updated, applies from the next session")
	}
	if sess == nil {
		return
	}

	if d.PromptChanged {
		rendered := config.RenderPrompt(cfg.Agent.Prompt, m.cfg.Calendar.TimeZone, m.now())
		if err := sess.UpdatePrompt(rendered); err != nil {
			slog.Warn("prompt update failed", "error", err)
		} else {
			slog.Info("prompt update sent to live session")
		}
	}
	if d.SpeakModelChanged {
		if err := sess.UpdateSpeak(cfg.Agent.Speak.Model); err != nil {
			slog.Warn("speak model update failed", "model", cfg.Agent.Speak.Model, "error", err)
		} else {
			slog.Info("speak model update sent to live session", "model", cfg.Agent.Speak.Model)
		}
	}
}

// toModel converts a config model selection to the session wire form.
func toModel(mc config.ModelConfig) voice.Model {
	return voice.Model{Type: mc.Provider, Model: mc.Model}
}
