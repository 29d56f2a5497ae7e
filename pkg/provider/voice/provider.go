// Package voice defines the Provider interface for real-time voice agent
// backends.
//
// A voice agent backend wraps a hosted service that accepts raw microphone
// audio and returns synthesised speech in a single, stateful session,
// handling speech recognition, turn taking, and language-model reasoning on
// the server side. The client's remaining responsibilities are streaming
// audio both ways, reacting to control events, and executing the function
// calls the agent requests locally.
//
// The central abstraction is SessionHandle: a bidirectional, multiplexed
// connection that carries audio, control events, and function calls
// concurrently. Sessions are long-lived (minutes) and support mid-session
// reconfiguration of the prompt and the speech synthesis model.
//
// All implementations must be safe for concurrent use.
package voice

import "context"

// Handler is the callback invoked by the session whenever the agent requests
// a function call. It receives the function name and a JSON-encoded arguments
// string and returns the text result to speak back to the user, or an error.
//
// The handler is called from the session's internal receive loop, so it must
// not call blocking session methods (in particular Close) to avoid deadlocks,
// and it should bound its own execution time: the agent stays silent until
// the result is returned.
type Handler func(name string, args string) (string, error)

// Model identifies one provider-hosted model, such as a recognition,
// reasoning, or synthesis model.
type Model struct {
	// Type is the hosting provider identifier, e.g. "deepgram" or "open_ai".
	Type string

	// Model is the model identifier, e.g. "nova-3" or "gpt-4o-mini".
	Model string
}

// FunctionDefinition describes one locally executed function offered to the
// agent when the session is opened.
type FunctionDefinition struct {
	// Name is the function's unique identifier.
	Name string

	// Description explains to the agent what the function does.
	Description string

	// Parameters is the JSON Schema describing the function's arguments.
	Parameters map[string]any
}

// FunctionCall is one function invocation requested by the agent.
type FunctionCall struct {
	// ID correlates the call with its response.
	ID string `json:"id"`

	// Name is the function to invoke.
	Name string `json:"name"`

	// Arguments is the JSON-encoded arguments object.
	Arguments string `json:"arguments"`
}

// SessionConfig is the initial configuration for a new agent session.
type SessionConfig struct {
	// InputEncoding and InputSampleRate describe the microphone audio the
	// client will stream, e.g. "linear16" at 44100 Hz.
	InputEncoding   string
	InputSampleRate int

	// OutputEncoding and OutputSampleRate describe the agent speech the
	// client expects back, e.g. "linear16" at 16000 Hz.
	OutputEncoding   string
	OutputSampleRate int

	// Listen, Think, and Speak select the recognition, reasoning, and
	// synthesis models for the session.
	Listen Model
	Think  Model
	Speak  Model

	// Prompt is the system-level instruction text for the reasoning model.
	Prompt string

	// Greeting is spoken by the agent as soon as the session is ready.
	Greeting string

	// Functions is the set of locally executed functions offered to the
	// agent. Calls are surfaced via the Handler set with OnFunctionCall.
	Functions []FunctionDefinition
}

// EventKind identifies a control event surfaced by the session. The values
// match the wire-level message type names.
type EventKind string

const (
	// KindWelcome is sent once after the connection is accepted.
	KindWelcome EventKind = "Welcome"

	// KindSettingsApplied confirms the session configuration. Microphone
	// audio sent before this event may be discarded by the agent.
	KindSettingsApplied EventKind = "SettingsApplied"

	// KindConversationText carries the transcript of one utterance, from
	// either the user or the agent.
	KindConversationText EventKind = "ConversationText"

	// KindUserStartedSpeaking signals barge-in: the user began speaking and
	// any buffered agent speech should be dropped.
	KindUserStartedSpeaking EventKind = "UserStartedSpeaking"

	// KindAgentThinking indicates the reasoning model is producing a
	// response.
	KindAgentThinking EventKind = "AgentThinking"

	// KindAgentStartedSpeaking marks the start of an agent speech segment.
	KindAgentStartedSpeaking EventKind = "AgentStartedSpeaking"

	// KindAgentAudioDone marks the end of an agent speech segment.
	KindAgentAudioDone EventKind = "AgentAudioDone"

	// KindPromptUpdated confirms a mid-session UpdatePrompt.
	KindPromptUpdated EventKind = "PromptUpdated"

	// KindSpeakUpdated confirms a mid-session UpdateSpeak.
	KindSpeakUpdated EventKind = "SpeakUpdated"

	// KindWarning carries a non-fatal diagnostic from the agent.
	KindWarning EventKind = "Warning"

	// KindError carries a conversation-level failure from the agent. The
	// session itself stays open.
	KindError EventKind = "Error"

	// KindUnknown is any message type this client does not recognise. The
	// raw type name is preserved in Event.Type.
	KindUnknown EventKind = "Unknown"
)

// Event is one control event surfaced by the session. Only the fields
// relevant to the Kind are populated.
type Event struct {
	// Kind classifies the event.
	Kind EventKind

	// Type is the wire-level message type. It differs from Kind only for
	// KindUnknown events.
	Type string

	// RequestID is the server-assigned session identifier (KindWelcome).
	RequestID string

	// Role is the speaker, "user" or "assistant" (KindConversationText).
	Role string

	// Content is the utterance or thinking text (KindConversationText,
	// KindAgentThinking).
	Content string

	// Description and Code detail a warning or error (KindWarning,
	// KindError).
	Description string
	Code        string
}

// SessionHandle represents an open agent session. It is an interface so that
// test code can supply mock implementations without a live connection.
//
// Audio and Events are channel-based so the caller's capture and playback
// goroutines never block on protocol handling. Consumers must drain both
// channels promptly. All methods are safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio queues a raw PCM chunk of microphone audio for delivery to
	// the agent. The chunk must match the input format the session was
	// opened with. Returns an error if the session is closed.
	SendAudio(chunk []byte) error

	// Audio returns a read-only channel emitting raw PCM chunks of agent
	// speech in the session's output format. The channel is closed when the
	// session ends; call Err afterwards to check whether it ended cleanly.
	Audio() <-chan []byte

	// Events returns a read-only channel emitting control events. It is
	// closed together with the Audio channel.
	Events() <-chan Event

	// OnFunctionCall registers the handler invoked for agent function
	// calls. Only one handler is active at a time; registering again
	// replaces the previous handler, nil clears it. Calls arriving with no
	// handler registered are answered with a failure content string.
	OnFunctionCall(handler Handler)

	// UpdatePrompt replaces the reasoning model's instruction text
	// mid-session. Effective from the next agent turn.
	UpdatePrompt(prompt string) error

	// UpdateSpeak switches the speech synthesis model mid-session.
	UpdateSpeak(model string) error

	// Err returns the error that terminated the session, or nil if it is
	// still open or was closed by the caller.
	Err() error

	// Close terminates the session, releases all resources, and closes the
	// Audio and Events channels. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over a voice agent backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new agent session with the given configuration.
	// The returned SessionHandle is ready to accept audio immediately.
	//
	// The caller owns the SessionHandle and is responsible for calling
	// Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
