// Package deepgram implements the voice.Provider interface for the Deepgram
// Voice Agent API.
//
// It establishes a bidirectional WebSocket connection to the converse
// endpoint and exchanges messages according to the Voice Agent protocol:
// binary frames carry PCM audio in both directions, text frames carry JSON
// control messages. The first frame sent is always the Settings message
// rendered from the SessionConfig; function calls requested by the agent are
// executed via the registered Handler and answered with FunctionCallResponse
// messages. Mid-session prompt and speech-model changes are supported via
// UpdatePrompt / UpdateSpeak messages.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/MrWong99/voxcal/pkg/provider/voice"
	"github.com/coder/websocket"
)

// Compile-time assertions that Provider and session satisfy the voice
// interfaces.
var _ voice.Provider = (*Provider)(nil)
var _ voice.SessionHandle = (*session)(nil)

const defaultEndpoint = "wss://agent.deepgram.com/v1/agent/converse"

// fallbackContent is spoken back to the agent when a requested function does
// not exist or its handler fails. The agent relays it to the user verbatim.
const fallbackContent = "Function could not be called"

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithEndpoint overrides the converse WebSocket URL. Primarily used in tests
// to point at a local mock server.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// Provider implements voice.Provider for the Deepgram Voice Agent API.
type Provider struct {
	apiKey   string
	endpoint string
}

// New creates a new Voice Agent Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Connect establishes a new agent session. The Settings message rendered from
// cfg is sent before the returned SessionHandle accepts any audio.
func (p *Provider) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.SessionHandle, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, p.endpoint, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:      conn,
		audio:     make(chan []byte, 256),
		events:    make(chan voice.Event, 64),
		outgoing:  make(chan []byte, 256),
		speakType: cfg.Speak.Type,
		ctx:       sessCtx,
		cancel:    sessCancel,
	}

	if err := sess.writeJSON(settingsMessage(cfg)); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "settings failed")
		return nil, fmt.Errorf("deepgram: send settings: %w", err)
	}

	sess.wg.Add(2)
	go sess.readLoop()
	go sess.writeLoop()

	return sess, nil
}

// ---- Protocol message types (outgoing) ----

type settings struct {
	Type  string        `json:"type"`
	Audio audioSettings `json:"audio"`
	Agent agentSettings `json:"agent"`
}

type audioSettings struct {
	Input  audioFormat `json:"input"`
	Output audioFormat `json:"output"`
}

type audioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type agentSettings struct {
	Listen   listenSettings `json:"listen"`
	Think    thinkSettings  `json:"think"`
	Speak    speakSettings  `json:"speak"`
	Greeting string         `json:"greeting,omitempty"`
}

type listenSettings struct {
	Provider modelProvider `json:"provider"`
}

type thinkSettings struct {
	Provider  modelProvider `json:"provider"`
	Prompt    string        `json:"prompt,omitempty"`
	Functions []functionDef `json:"functions,omitempty"`
}

type speakSettings struct {
	Provider modelProvider `json:"provider"`
}

type modelProvider struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type functionCallResponse struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type updatePromptMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

type updateSpeakMessage struct {
	Type  string        `json:"type"`
	Speak speakSettings `json:"speak"`
}

// settingsMessage renders cfg into the wire-level Settings message.
func settingsMessage(cfg voice.SessionConfig) settings {
	return settings{
		Type: "Settings",
		Audio: audioSettings{
			Input:  audioFormat{Encoding: cfg.InputEncoding, SampleRate: cfg.InputSampleRate},
			Output: audioFormat{Encoding: cfg.OutputEncoding, SampleRate: cfg.OutputSampleRate},
		},
		Agent: agentSettings{
			Listen: listenSettings{Provider: modelProvider{Type: cfg.Listen.Type, Model: cfg.Listen.Model}},
			Think: thinkSettings{
				Provider:  modelProvider{Type: cfg.Think.Type, Model: cfg.Think.Model},
				Prompt:    cfg.Prompt,
				Functions: toFunctionDefs(cfg.Functions),
			},
			Speak:    speakSettings{Provider: modelProvider{Type: cfg.Speak.Type, Model: cfg.Speak.Model}},
			Greeting: cfg.Greeting,
		},
	}
}

// toFunctionDefs converts voice.FunctionDefinition slice to the wire format.
func toFunctionDefs(defs []voice.FunctionDefinition) []functionDef {
	out := make([]functionDef, len(defs))
	for i, d := range defs {
		out[i] = functionDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return out
}

// ---- Protocol message types (incoming) ----

type serverMessage struct {
	Type string `json:"type"`

	// Welcome
	RequestID string `json:"request_id,omitempty"`

	// ConversationText / AgentThinking
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	// Error / Warning
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`

	// FunctionCallRequest
	Functions []voice.FunctionCall `json:"functions,omitempty"`
}

// eventKinds maps wire-level message types to their event kinds. Message
// types absent from this map are surfaced as KindUnknown.
var eventKinds = map[string]voice.EventKind{
	"Welcome":              voice.KindWelcome,
	"SettingsApplied":      voice.KindSettingsApplied,
	"ConversationText":     voice.KindConversationText,
	"UserStartedSpeaking":  voice.KindUserStartedSpeaking,
	"AgentThinking":        voice.KindAgentThinking,
	"AgentStartedSpeaking": voice.KindAgentStartedSpeaking,
	"AgentAudioDone":       voice.KindAgentAudioDone,
	"PromptUpdated":        voice.KindPromptUpdated,
	"SpeakUpdated":         voice.KindSpeakUpdated,
	"Warning":              voice.KindWarning,
	"Error":                voice.KindError,
}

// ---- session ----

// session is a live Voice Agent session. It implements voice.SessionHandle.
type session struct {
	conn *websocket.Conn

	audio    chan []byte      // agent speech, surfaced via Audio
	events   chan voice.Event // control events, surfaced via Events
	outgoing chan []byte      // microphone audio queued by SendAudio

	speakType string // speech provider type, reused by UpdateSpeak

	mu      sync.Mutex
	handler voice.Handler
	errVal  error

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	chanOnce  sync.Once
	wg        sync.WaitGroup
}

// SendAudio queues a PCM microphone chunk for delivery to the agent.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.ctx.Done():
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.outgoing <- chunk:
		return nil
	case <-s.ctx.Done():
		return errors.New("deepgram: session is closed")
	}
}

// Audio returns the channel of agent speech chunks.
func (s *session) Audio() <-chan []byte { return s.audio }

// Events returns the channel of control events.
func (s *session) Events() <-chan voice.Event { return s.events }

// Err returns the error that terminated the session, or nil.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// OnFunctionCall registers the handler for agent function calls.
func (s *session) OnFunctionCall(handler voice.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// UpdatePrompt replaces the reasoning model's instruction text by sending an
// UpdatePrompt message.
func (s *session) UpdatePrompt(prompt string) error {
	return s.writeJSON(updatePromptMessage{Type: "UpdatePrompt", Prompt: prompt})
}

// UpdateSpeak switches the speech synthesis model by sending an UpdateSpeak
// message. The speech provider type from the session config is kept.
func (s *session) UpdateSpeak(model string) error {
	return s.writeJSON(updateSpeakMessage{
		Type:  "UpdateSpeak",
		Speak: speakSettings{Provider: modelProvider{Type: s.speakType, Model: model}},
	})
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("deepgram: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// writeLoop drains the outgoing channel and sends microphone audio as binary
// frames.
func (s *session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.outgoing:
			if err := s.conn.Write(s.ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.ctx.Done():
			// Flush whatever is still queued before exiting.
			for {
				select {
				case chunk := <-s.outgoing:
					_ = s.conn.Write(s.ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives frames from the agent and dispatches them. It owns the
// audio and events channels: both are closed when it exits.
func (s *session) readLoop() {
	defer s.wg.Done()
	defer s.closeChannels()

	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.setErr(err)
			return
		}

		if typ == websocket.MessageBinary {
			select {
			case s.audio <- data:
			case <-s.ctx.Done():
			}
			continue
		}

		s.handleMessage(data)
	}
}

// handleMessage dispatches one JSON control message.
func (s *session) handleMessage(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if msg.Type == "FunctionCallRequest" {
		s.handleFunctionCalls(msg.Functions)
		return
	}

	kind, ok := eventKinds[msg.Type]
	if !ok {
		kind = voice.KindUnknown
	}
	s.emit(voice.Event{
		Kind:        kind,
		Type:        msg.Type,
		RequestID:   msg.RequestID,
		Role:        msg.Role,
		Content:     msg.Content,
		Description: msg.Description,
		Code:        msg.Code,
	})
}

// handleFunctionCalls executes each requested call via the registered handler
// and answers with one FunctionCallResponse per call. Unknown functions and
// handler failures are answered with fallbackContent so the agent can tell
// the user.
func (s *session) handleFunctionCalls(calls []voice.FunctionCall) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	for _, call := range calls {
		content := fallbackContent
		if handler != nil {
			if result, err := handler(call.Name, call.Arguments); err == nil {
				content = result
			}
		}
		_ = s.writeJSON(functionCallResponse{
			Type:    "FunctionCallResponse",
			ID:      call.ID,
			Name:    call.Name,
			Content: content,
		})
	}
}

func (s *session) emit(e voice.Event) {
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	}
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

func (s *session) closeChannels() {
	s.chanOnce.Do(func() {
		close(s.audio)
		close(s.events)
	})
}
