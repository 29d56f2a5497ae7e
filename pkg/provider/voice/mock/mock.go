// Package mock provides test doubles for the voice package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions. Use
// Session to drive the audio/event streams and inspect which methods were
// invoked by the session manager.
//
// Example:
//
//	sess := &mock.Session{
//	    AudioCh:  make(chan []byte, 8),
//	    EventsCh: make(chan voice.Event, 4),
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxcal/pkg/provider/voice"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg voice.SessionConfig
}

// Provider is a mock implementation of voice.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a new default Session with buffered channels.
	Session voice.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// Sessions, if non-empty, overrides Session: each Connect call consumes
	// the next entry until the slice is exhausted, then falls back to
	// Session/default. Useful for reconnect tests.
	Sessions []voice.SessionHandle

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns the configured session.
func (p *Provider) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if len(p.Sessions) > 0 {
		sess := p.Sessions[0]
		p.Sessions = p.Sessions[1:]
		return sess, nil
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Calls returns a copy of the recorded Connect calls. Thread-safe.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements voice.Provider at compile time.
var _ voice.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// UpdatePromptCall records a single invocation of Session.UpdatePrompt.
type UpdatePromptCall struct {
	// Prompt is the string passed to UpdatePrompt.
	Prompt string
}

// UpdateSpeakCall records a single invocation of Session.UpdateSpeak.
type UpdateSpeakCall struct {
	// Model is the string passed to UpdateSpeak.
	Model string
}

// Session is a mock implementation of voice.SessionHandle.
// Callers should pre-populate AudioCh and EventsCh, then close them to
// signal end-of-session.
type Session struct {
	mu sync.Mutex

	// AudioCh is the channel returned by Audio. Callers own this channel.
	AudioCh chan []byte

	// EventsCh is the channel returned by Events. Callers own this channel.
	EventsCh chan voice.Event

	// handler is the currently registered function call handler.
	handler voice.Handler

	// --- Configurable results ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// UpdatePromptErr, if non-nil, is returned by every UpdatePrompt call.
	UpdatePromptErr error

	// UpdateSpeakErr, if non-nil, is returned by every UpdateSpeak call.
	UpdateSpeakErr error

	// ErrResult is returned by Err.
	ErrResult error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// UpdatePromptCalls records every call to UpdatePrompt in order.
	UpdatePromptCalls []UpdatePromptCall

	// UpdateSpeakCalls records every call to UpdateSpeak in order.
	UpdateSpeakCalls []UpdateSpeakCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// OnFunctionCallSetCount is the number of times OnFunctionCall was
	// called.
	OnFunctionCallSetCount int
}

// NewSession returns a Session with buffered audio and event channels.
func NewSession() *Session {
	return &Session{
		AudioCh:  make(chan []byte, 64),
		EventsCh: make(chan voice.Event, 16),
	}
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Audio returns AudioCh.
func (s *Session) Audio() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioCh
}

// Events returns EventsCh.
func (s *Session) Events() <-chan voice.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EventsCh
}

// OnFunctionCall stores the handler and increments OnFunctionCallSetCount.
func (s *Session) OnFunctionCall(handler voice.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	s.OnFunctionCallSetCount++
}

// Handler returns the currently registered function call handler.
// Thread-safe. Useful in tests to simulate an agent function call.
func (s *Session) Handler() voice.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// UpdatePrompt records the call and returns UpdatePromptErr.
func (s *Session) UpdatePrompt(prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatePromptCalls = append(s.UpdatePromptCalls, UpdatePromptCall{Prompt: prompt})
	return s.UpdatePromptErr
}

// UpdateSpeak records the call and returns UpdateSpeakErr.
func (s *Session) UpdateSpeak(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateSpeakCalls = append(s.UpdateSpeakCalls, UpdateSpeakCall{Model: model})
	return s.UpdateSpeakErr
}

// SentAudio returns a copy of every chunk passed to SendAudio. Thread-safe.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.SendAudioCalls))
	for i, c := range s.SendAudioCalls {
		out[i] = c.Chunk
	}
	return out
}

// PromptUpdates returns every prompt passed to UpdatePrompt. Thread-safe.
func (s *Session) PromptUpdates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.UpdatePromptCalls))
	for i, c := range s.UpdatePromptCalls {
		out[i] = c.Prompt
	}
	return out
}

// SpeakUpdates returns every model passed to UpdateSpeak. Thread-safe.
func (s *Session) SpeakUpdates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.UpdateSpeakCalls))
	for i, c := range s.UpdateSpeakCalls {
		out[i] = c.Model
	}
	return out
}

// Err returns ErrResult.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrResult
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Closed reports whether Close has been called at least once. Thread-safe.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount > 0
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.UpdatePromptCalls = nil
	s.UpdateSpeakCalls = nil
	s.CloseCallCount = 0
	s.OnFunctionCallSetCount = 0
}

// Ensure Session implements voice.SessionHandle at compile time.
var _ voice.SessionHandle = (*Session)(nil)
