package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
)

// Format is the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	}
	return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
}

// Converter rewrites frames into a fixed target format. One Converter serves
// one stream; it is not safe for concurrent use.
type Converter struct {
	Target Format

	warnOnce sync.Once
	dropOnce sync.Once
}

// Convert returns frame rewritten to the target format. A frame already in
// the target format passes through untouched. Frames with an odd byte count
// are not valid int16 PCM and come back with nil Data.
//
// Conversion passes through mono: stereo input is downmixed before any rate
// change, so only the mono resampler runs and stereo separation is not
// preserved. The agent pipeline is mono end to end, which makes this the
// right trade.
func (c *Converter) Convert(frame Frame) Frame {
	if len(frame.Data)%2 != 0 {
		c.dropOnce.Do(func() {
			slog.Warn("dropping misaligned pcm frame",
				"bytes", len(frame.Data),
				"format", Format{SampleRate: frame.SampleRate, Channels: frame.Channels}.String(),
			)
		})
		return Frame{
			SampleRate: c.Target.SampleRate,
			Channels:   c.Target.Channels,
			Timestamp:  frame.Timestamp,
		}
	}

	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}
	c.warnOnce.Do(func() {
		slog.Warn("converting audio format",
			"from", Format{SampleRate: frame.SampleRate, Channels: frame.Channels}.String(),
			"to", c.Target.String(),
		)
	})

	samples := toSamples(frame.Data)
	if frame.Channels == 2 {
		samples = downmix(samples)
	}
	if frame.SampleRate != c.Target.SampleRate {
		samples = resample(samples, frame.SampleRate, c.Target.SampleRate)
	}
	channels := 1
	if c.Target.Channels == 2 {
		samples = upmix(samples)
		channels = 2
	}

	return Frame{
		Data:       toBytes(samples),
		SampleRate: c.Target.SampleRate,
		Channels:   channels,
		Timestamp:  frame.Timestamp,
	}
}

// ConvertStream converts every frame arriving on in to the target format.
// Misaligned frames are dropped. The returned channel carries the same
// buffer capacity as in and closes when in closes.
func ConvertStream(in <-chan Frame, target Format) <-chan Frame {
	out := make(chan Frame, cap(in))
	go func() {
		defer close(out)
		conv := Converter{Target: target}
		for frame := range in {
			if converted := conv.Convert(frame); len(converted.Data) > 0 {
				out <- converted
			}
		}
	}()
	return out
}

func toSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func toBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// downmix averages each left/right pair into one mono sample. The average of
// two int16 values always fits in an int16, so no clamping is needed.
func downmix(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		mono[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return mono
}

// upmix duplicates each mono sample into a left/right pair.
func upmix(samples []int16) []int16 {
	stereo := make([]int16, len(samples)*2)
	for i, s := range samples {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	return stereo
}

// resample converts mono samples between rates by linear interpolation,
// holding the last sample when the interpolation window runs past the end.
func resample(samples []int16, from, to int) []int16 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}

	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)

		s0 := float64(samples[j])
		s1 := s0
		if j+1 < len(samples) {
			s1 = float64(samples[j+1])
		}
		out[i] = int16(s0 + frac*(s1-s0))
	}
	return out
}
