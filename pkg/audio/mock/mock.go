// Package mock provides in-memory mock implementations of the
// [audio.Platform], [audio.Source], and [audio.Sink] interfaces for use in
// unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	src := mock.NewScriptedSource(audio.Frame{Data: pcm, SampleRate: 44100, Channels: 1})
//	snk := &mock.Sink{}
//	platform := &mock.Platform{SourceResult: src, SinkResult: snk}
package mock

import (
	"sync"

	"github.com/MrWong99/voxcal/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
//
// Tests feed frames through FramesCh and close it to signal end of capture.
// The mock never closes FramesCh itself.
type Source struct {
	mu sync.Mutex

	// FramesCh is returned by [Source.Frames]. The test owns this channel.
	FramesCh chan audio.Frame

	// CloseErr is returned by [Source.Close].
	CloseErr error

	closeCount int
}

var _ audio.Source = (*Source)(nil)

// NewSource returns a Source with an open frame channel of the given buffer
// size. The test writes frames to FramesCh and closes it when done.
func NewSource(buffer int) *Source {
	return &Source{FramesCh: make(chan audio.Frame, buffer)}
}

// NewScriptedSource returns a Source whose channel already holds the given
// frames and is closed: consumers read the script and then see end of
// stream.
func NewScriptedSource(frames ...audio.Frame) *Source {
	ch := make(chan audio.Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &Source{FramesCh: ch}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.FramesCh }

// Close implements [audio.Source]. Returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return s.CloseErr
}

// Closed reports whether Close was called at least once.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount > 0
}

// PlayCall records the argument of a single [Sink.Play] invocation.
type PlayCall struct {
	// Chunk is a copy of the PCM data passed to Play.
	Chunk []byte
}

// Sink is a mock implementation of [audio.Sink] that records everything
// played through it.
type Sink struct {
	mu sync.Mutex

	// PlayErr is returned by [Sink.Play].
	PlayErr error

	// CloseErr is returned by [Sink.Close].
	CloseErr error

	playCalls  []PlayCall
	flushCount int
	closeCount int
}

var _ audio.Sink = (*Sink)(nil)

// Play implements [audio.Sink]. Records a copy of the chunk and returns
// PlayErr.
func (s *Sink) Play(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.playCalls = append(s.playCalls, PlayCall{Chunk: cp})
	return s.PlayErr
}

// Flush implements [audio.Sink].
func (s *Sink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushCount++
}

// Close implements [audio.Sink]. Returns CloseErr.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return s.CloseErr
}

// PlayCalls returns a copy of all recorded Play invocations.
func (s *Sink) PlayCalls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.playCalls))
	copy(out, s.playCalls)
	return out
}

// Played returns the concatenation of all played chunks.
func (s *Sink) Played() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.playCalls {
		out = append(out, c.Chunk...)
	}
	return out
}

// FlushCount reports how many times Flush was called.
func (s *Sink) FlushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushCount
}

// Closed reports whether Close was called at least once.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount > 0
}

// ResetCalls clears all recorded invocations without touching the configured
// return values.
func (s *Sink) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playCalls = nil
	s.flushCount = 0
	s.closeCount = 0
}

// OpenSourceCall records the arguments of a single [Platform.OpenSource]
// invocation.
type OpenSourceCall struct {
	SampleRate      int
	FramesPerBuffer int
}

// OpenSinkCall records the arguments of a single [Platform.OpenSink]
// invocation.
type OpenSinkCall struct {
	SampleRate int
}

// Platform is a mock implementation of [audio.Platform].
// Set the exported Result fields before use; inspect the calls after.
type Platform struct {
	mu sync.Mutex

	// SourceResult is returned by OpenSource. Defaults to a fresh open
	// [Source] if left nil.
	SourceResult audio.Source

	// SourceErr is the error returned by OpenSource.
	SourceErr error

	// SinkResult is returned by OpenSink. Defaults to a fresh [Sink] if
	// left nil.
	SinkResult audio.Sink

	// SinkErr is the error returned by OpenSink.
	SinkErr error

	// CloseErr is returned by [Platform.Close].
	CloseErr error

	openSourceCalls []OpenSourceCall
	openSinkCalls   []OpenSinkCall
	closeCount      int
}

var _ audio.Platform = (*Platform)(nil)

// OpenSource implements [audio.Platform]. Records the call and returns
// SourceResult / SourceErr.
func (p *Platform) OpenSource(sampleRate, framesPerBuffer int) (audio.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openSourceCalls = append(p.openSourceCalls, OpenSourceCall{
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	})
	if p.SourceErr != nil {
		return nil, p.SourceErr
	}
	if p.SourceResult == nil {
		p.SourceResult = NewSource(8)
	}
	return p.SourceResult, nil
}

// OpenSink implements [audio.Platform]. Records the call and returns
// SinkResult / SinkErr.
func (p *Platform) OpenSink(sampleRate int) (audio.Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openSinkCalls = append(p.openSinkCalls, OpenSinkCall{SampleRate: sampleRate})
	if p.SinkErr != nil {
		return nil, p.SinkErr
	}
	if p.SinkResult == nil {
		p.SinkResult = &Sink{}
	}
	return p.SinkResult, nil
}

// Close implements [audio.Platform]. Returns CloseErr.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	return p.CloseErr
}

// OpenSourceCalls returns a copy of all recorded OpenSource invocations.
func (p *Platform) OpenSourceCalls() []OpenSourceCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OpenSourceCall, len(p.openSourceCalls))
	copy(out, p.openSourceCalls)
	return out
}

// OpenSinkCalls returns a copy of all recorded OpenSink invocations.
func (p *Platform) OpenSinkCalls() []OpenSinkCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OpenSinkCall, len(p.openSinkCalls))
	copy(out, p.openSinkCalls)
	return out
}

// Closed reports whether Close was called at least once.
func (p *Platform) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount > 0
}
