package audio_test

import (
	"encoding/binary"
	"slices"
	"testing"

	"github.com/MrWong99/voxcal/pkg/audio"
)

func pcm(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func samplesOf(b []byte) []int16 {
	s := make([]int16, len(b)/2)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return s
}

func TestFormatString(t *testing.T) {
	tests := []struct {
		format audio.Format
		want   string
	}{
		{audio.Format{SampleRate: 44100, Channels: 1}, "44100Hz mono"},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Format{SampleRate: 16000, Channels: 6}, "16000Hz 6ch"},
	}
	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestConverter_PassThrough(t *testing.T) {
	conv := audio.Converter{Target: audio.Format{SampleRate: 44100, Channels: 1}}
	frame := audio.Frame{
		Data:       pcm(100, 200),
		SampleRate: 44100,
		Channels:   1,
	}

	got := conv.Convert(frame)
	if &got.Data[0] != &frame.Data[0] {
		t.Error("matching format should return the frame's own buffer")
	}
}

func TestConverter_DownmixesStereo(t *testing.T) {
	conv := audio.Converter{Target: audio.Format{SampleRate: 44100, Channels: 1}}
	frame := audio.Frame{
		Data:       pcm(100, 200, -100, -200, 32767, 32767, -32768, -32768),
		SampleRate: 44100,
		Channels:   2,
	}

	got := conv.Convert(frame)
	if got.SampleRate != 44100 || got.Channels != 1 {
		t.Fatalf("output format = %dHz %dch, want 44100Hz 1ch", got.SampleRate, got.Channels)
	}
	want := []int16{150, -150, 32767, -32768}
	if !slices.Equal(samplesOf(got.Data), want) {
		t.Errorf("downmixed samples = %v, want %v", samplesOf(got.Data), want)
	}
}

func TestConverter_UpmixesForStereoSink(t *testing.T) {
	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 2}}
	frame := audio.Frame{
		Data:       pcm(100, 200, 300),
		SampleRate: 16000,
		Channels:   1,
	}

	got := conv.Convert(frame)
	if got.SampleRate != 16000 || got.Channels != 2 {
		t.Fatalf("output format = %dHz %dch, want 16000Hz 2ch", got.SampleRate, got.Channels)
	}
	want := []int16{100, 100, 200, 200, 300, 300}
	if !slices.Equal(samplesOf(got.Data), want) {
		t.Errorf("upmixed samples = %v, want %v", samplesOf(got.Data), want)
	}
}

func TestConverter_UpsamplesLinearly(t *testing.T) {
	// 8000 to 16000 doubles the sample count; the rate ratio is exact in
	// floating point, so the interpolated values are too.
	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	frame := audio.Frame{
		Data:       pcm(1000, 2000),
		SampleRate: 8000,
		Channels:   1,
	}

	got := samplesOf(conv.Convert(frame).Data)
	want := []int16{1000, 1500, 2000, 2000}
	if !slices.Equal(got, want) {
		t.Errorf("upsampled samples = %v, want %v", got, want)
	}
}

func TestConverter_ResamplesMicToAgentRate(t *testing.T) {
	// 441 samples at 44.1kHz are 10ms of audio, which is 160 samples at
	// 16kHz. A linear ramp must stay a non-decreasing ramp.
	ramp := make([]int16, 441)
	for i := range ramp {
		ramp[i] = int16(i)
	}
	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	frame := audio.Frame{
		Data:       pcm(ramp...),
		SampleRate: 44100,
		Channels:   1,
	}

	got := samplesOf(conv.Convert(frame).Data)
	if len(got) != 160 {
		t.Fatalf("resampled to %d samples, want 160", len(got))
	}
	if got[0] != 0 {
		t.Errorf("first sample = %d, want 0", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("sample %d = %d dips below sample %d = %d", i, got[i], i-1, got[i-1])
		}
	}
	if last := got[len(got)-1]; last < 430 || last > 440 {
		t.Errorf("last sample = %d, want near the top of the ramp", last)
	}
}

func TestConverter_StereoDeviceFullPath(t *testing.T) {
	// A 48kHz stereo capture device feeding the 44.1kHz mono contract.
	// L equals R, so the downmix is lossless and the first sample survives
	// the resample exactly.
	conv := audio.Converter{Target: audio.Format{SampleRate: 44100, Channels: 1}}
	frame := audio.Frame{
		Data:       pcm(1000, 1000, 2000, 2000, 3000, 3000, 4000, 4000),
		SampleRate: 48000,
		Channels:   2,
	}

	got := conv.Convert(frame)
	if got.SampleRate != 44100 || got.Channels != 1 {
		t.Fatalf("output format = %dHz %dch, want 44100Hz 1ch", got.SampleRate, got.Channels)
	}
	out := samplesOf(got.Data)
	if len(out) == 0 {
		t.Fatal("conversion produced no samples")
	}
	if out[0] != 1000 {
		t.Errorf("first sample = %d, want 1000", out[0])
	}
}

func TestConverter_DropsMisalignedFrames(t *testing.T) {
	conv := audio.Converter{Target: audio.Format{SampleRate: 44100, Channels: 1}}

	for _, rate := range []int{16000, 44100} {
		frame := audio.Frame{
			Data:       []byte{1, 2, 3},
			SampleRate: rate,
			Channels:   1,
		}
		got := conv.Convert(frame)
		if len(got.Data) != 0 {
			t.Errorf("misaligned %dHz frame kept %d bytes, want 0", rate, len(got.Data))
		}
		if got.SampleRate != 44100 || got.Channels != 1 {
			t.Errorf("dropped frame format = %dHz %dch, want the target format", got.SampleRate, got.Channels)
		}
	}
}

func TestConvertStream(t *testing.T) {
	in := make(chan audio.Frame, 3)
	out := audio.ConvertStream(in, audio.Format{SampleRate: 44100, Channels: 1})

	in <- audio.Frame{Data: pcm(100, 200, 300, 400), SampleRate: 44100, Channels: 2}
	in <- audio.Frame{Data: []byte{1, 2, 3}, SampleRate: 44100, Channels: 1}
	in <- audio.Frame{Data: pcm(500, 600), SampleRate: 44100, Channels: 1}
	close(in)

	var got []audio.Frame
	for frame := range out {
		got = append(got, frame)
	}

	if len(got) != 2 {
		t.Fatalf("received %d frames, want 2 (misaligned frame dropped)", len(got))
	}
	if want := []int16{150, 350}; !slices.Equal(samplesOf(got[0].Data), want) {
		t.Errorf("frame 0 samples = %v, want %v", samplesOf(got[0].Data), want)
	}
	if got[0].Channels != 1 {
		t.Errorf("frame 0 channels = %d, want 1", got[0].Channels)
	}
	if want := []int16{500, 600}; !slices.Equal(samplesOf(got[1].Data), want) {
		t.Errorf("frame 1 samples = %v, want %v", samplesOf(got[1].Data), want)
	}
}
