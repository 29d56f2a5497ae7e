package audio

import "time"

// Frame is one buffer of PCM audio moving through the pipeline, captured
// from the microphone, format-converted when the device does not match the
// session contract, and streamed to the voice agent.
type Frame struct {
	// Data holds little-endian int16 samples, interleaved when stereo.
	Data []byte

	// SampleRate in Hz (e.g. 44100 for microphone capture, 16000 for agent
	// speech).
	SampleRate int

	// Channels: 1 for mono (the session contract), 2 for stereo devices.
	Channels int

	// Timestamp is the capture offset from the start of the stream.
	Timestamp time.Duration
}
