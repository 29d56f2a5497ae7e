// Package audio defines the interfaces and types for microphone capture and
// speaker playback within Voxcal.
//
// The three primary abstractions are:
//
//   - [Source]: an open capture stream delivering PCM frames.
//   - [Sink]: an open playback stream accepting PCM chunks.
//   - [Platform]: opens sources and sinks on a concrete audio backend.
//
// Implementations of these interfaces are provided by backend-specific
// packages (e.g. audio/portaudio for the host's default devices, audio/mock
// for tests). The interfaces are intentionally narrow to keep the session
// loop decoupled from device details.
//
// This package lives under pkg/ because external code (alternative audio
// backends) is expected to implement [Platform], [Source] and [Sink].
package audio

// Source represents an open capture stream.
//
// A Source is obtained by calling [Platform.OpenSource] and delivers frames
// until [Source.Close] is called or the device fails. Implementations must be
// safe for concurrent use.
type Source interface {
	// Frames returns the read-only channel delivering captured PCM frames.
	// The channel is closed when the source is closed or the device fails;
	// after a device failure Close reports the underlying error.
	Frames() <-chan Frame

	// Close stops capture, releases the device, and closes the frame
	// channel. It is safe to call Close more than once; subsequent calls are
	// no-ops and return the same result.
	Close() error
}

// Sink represents an open playback stream.
//
// Implementations must be safe for concurrent use: Play and Flush may be
// called from different goroutines (the agent receive loop plays audio while
// the event loop flushes on barge-in).
type Sink interface {
	// Play queues a chunk of little-endian int16 PCM for playback. It blocks
	// while the playback queue is full and returns an error once the sink is
	// closed.
	Play(chunk []byte) error

	// Flush discards all queued audio that has not yet reached the device.
	// This is the barge-in path: when the user speaks over the agent, the
	// rest of the agent's sentence must not be played.
	Flush()

	// Close stops playback and releases the device. It is safe to call
	// Close more than once; subsequent calls are no-ops and return the same
	// result.
	Close() error
}

// Platform opens capture and playback streams on a concrete audio backend.
// Implementations wrap device libraries (PortAudio, test fakes, …) and expose
// a uniform stream abstraction.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// OpenSource opens the capture device at the given sample rate. The
	// source delivers mono little-endian int16 frames of framesPerBuffer
	// samples each.
	OpenSource(sampleRate, framesPerBuffer int) (Source, error)

	// OpenSink opens the playback device for mono little-endian int16 audio
	// at the given sample rate.
	OpenSink(sampleRate int) (Sink, error)

	// Close releases the backend. Open sources and sinks must be closed
	// before the platform.
	Close() error
}
