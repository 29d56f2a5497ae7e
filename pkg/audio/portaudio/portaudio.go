// Package portaudio implements the audio interfaces on the host's default
// capture and playback devices via PortAudio.
//
// Capture delivers mono little-endian int16 frames at the requested sample
// rate; playback accepts mono little-endian int16 chunks. [Sink.Flush] drops
// queued playback immediately, which is how barge-in cuts the agent off
// mid-sentence.
//
// Requires the PortAudio C library at build time (cgo).
package portaudio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/voxcal/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// defaultFramesPerBuffer is used when the caller does not specify a buffer
// size. 1024 samples is roughly 23ms at 44.1kHz.
const defaultFramesPerBuffer = 1024

// Platform implements [audio.Platform] using PortAudio's default devices.
type Platform struct {
	closeOnce sync.Once
	closeErr  error
}

var _ audio.Platform = (*Platform)(nil)

// New initializes the PortAudio library and returns a Platform backed by the
// host's default devices. Callers must Close the platform to release the
// library.
func New() (*Platform, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Platform{}, nil
}

// OpenSource implements [audio.Platform]. It opens the default capture device
// for mono int16 input and starts a goroutine that reads device buffers into
// frames.
func (p *Platform) OpenSource(sampleRate, framesPerBuffer int) (audio.Source, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start capture stream: %w", err)
	}
	s := &source{
		stream:     stream,
		buf:        buf,
		sampleRate: sampleRate,
		started:    time.Now(),
		frames:     make(chan audio.Frame, 8),
		done:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// OpenSink implements [audio.Platform]. It opens the default playback device
// for mono int16 output and starts a goroutine that feeds queued chunks to
// the device.
func (p *Platform) OpenSink(sampleRate int) (audio.Sink, error) {
	buf := make([]int16, defaultFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start playback stream: %w", err)
	}
	s := &sink{
		stream: stream,
		buf:    buf,
		queue:  make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Close implements [audio.Platform]. It terminates the PortAudio library.
// Open sources and sinks must be closed first.
func (p *Platform) Close() error {
	p.closeOnce.Do(func() {
		if err := portaudio.Terminate(); err != nil {
			p.closeErr = fmt.Errorf("portaudio: terminate: %w", err)
		}
	})
	return p.closeErr
}

// source reads fixed-size device buffers and republishes them as frames.
type source struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
	started    time.Time

	frames chan audio.Frame
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	loopErr error
}

var _ audio.Source = (*source)(nil)

// Frames implements [audio.Source].
func (s *source) Frames() <-chan audio.Frame { return s.frames }

// Close implements [audio.Source]. Abort unblocks a pending device read so
// the capture goroutine can exit.
func (s *source) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.stream.Abort()
		s.wg.Wait()
		err := s.stream.Close()
		s.mu.Lock()
		if s.loopErr != nil {
			s.closeErr = s.loopErr
		} else if err != nil {
			s.closeErr = fmt.Errorf("portaudio: close capture stream: %w", err)
		}
		s.mu.Unlock()
	})
	return s.closeErr
}

func (s *source) loop() {
	defer s.wg.Done()
	defer close(s.frames)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			// Overflow means the device dropped samples while we were busy;
			// keep capturing.
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			select {
			case <-s.done:
			default:
				s.setErr(fmt.Errorf("portaudio: read capture stream: %w", err))
			}
			return
		}
		frame := audio.Frame{
			Data:       int16Bytes(s.buf),
			SampleRate: s.sampleRate,
			Channels:   1,
			Timestamp:  time.Since(s.started),
		}
		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

func (s *source) setErr(err error) {
	s.mu.Lock()
	if s.loopErr == nil {
		s.loopErr = err
	}
	s.mu.Unlock()
}

// sink feeds queued PCM chunks to the playback device.
type sink struct {
	stream *portaudio.Stream
	buf    []int16

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	loopErr error
}

var _ audio.Sink = (*sink)(nil)

// Play implements [audio.Sink].
func (s *sink) Play(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("portaudio: sink is closed")
	default:
	}
	select {
	case s.queue <- chunk:
		return nil
	case <-s.done:
		return errors.New("portaudio: sink is closed")
	}
}

// Flush implements [audio.Sink]. It drains the queue without blocking. A
// chunk already handed to the device keeps playing; at 1024 frames that is at
// most a few tens of milliseconds of residual speech.
func (s *sink) Flush() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// Close implements [audio.Sink]. Queued chunks that have not reached the
// device are discarded.
func (s *sink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.stream.Stop()
		err := s.stream.Close()
		s.mu.Lock()
		if s.loopErr != nil {
			s.closeErr = s.loopErr
		} else if err != nil {
			s.closeErr = fmt.Errorf("portaudio: close playback stream: %w", err)
		}
		s.mu.Unlock()
	})
	return s.closeErr
}

func (s *sink) loop() {
	defer s.wg.Done()
	var failed bool
	for {
		select {
		case chunk := <-s.queue:
			// After a device failure keep draining so Play never blocks
			// forever; the error surfaces on Close.
			if failed {
				continue
			}
			if err := s.write(chunk); err != nil {
				s.setErr(err)
				failed = true
			}
		case <-s.done:
			return
		}
	}
}

// write plays one chunk through the device buffer, zero-padding the final
// partial buffer.
func (s *sink) write(chunk []byte) error {
	samples := bytesInt16(chunk)
	for len(samples) > 0 {
		n := copy(s.buf, samples)
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		if err := s.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write playback stream: %w", err)
		}
		samples = samples[n:]
	}
	return nil
}

func (s *sink) setErr(err error) {
	s.mu.Lock()
	if s.loopErr == nil {
		s.loopErr = err
	}
	s.mu.Unlock()
}

// int16Bytes copies samples into a fresh little-endian byte slice. The stream
// buffer is reused by the next device read, so each frame needs its own copy.
func int16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// bytesInt16 decodes little-endian PCM bytes into samples. A trailing odd
// byte is ignored.
func bytesInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
