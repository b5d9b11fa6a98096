package audioconv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, rate, channels int, frames int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	data := make([]int, frames*channels)
	for i := range data {
		data[i] = 16384
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

func TestDecodeWAVStereoTo16k(t *testing.T) {
	data := writeWAV(t, 32000, 2, 3200)

	pcm, err := Decode(data, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pcm) != 1600 {
		t.Fatalf("expected 1600 samples at 16 kHz, got %d", len(pcm))
	}
	for i, v := range pcm {
		if v < 0.49 || v > 0.51 {
			t.Fatalf("sample %d = %v, want ~0.5", i, v)
		}
	}
}

func TestDecodeTruncates(t *testing.T) {
	data := writeWAV(t, SampleRate, 1, 1000)
	pcm, err := Decode(data, Options{MaxSamples: 100})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pcm) != 100 {
		t.Fatalf("len = %d, want 100", len(pcm))
	}
}

func TestDecodeUnsupported(t *testing.T) {
	if _, err := Decode([]byte("definitely not audio"), Options{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestSniff(t *testing.T) {
	cases := map[string]struct {
		in   []byte
		want Format
	}{
		"wav":     {[]byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		"ogg":     {[]byte("OggS\x00\x02"), FormatOgg},
		"id3":     {[]byte("ID3\x04"), FormatMP3},
		"mp3 raw": {[]byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		"short":   {[]byte("Og"), FormatUnknown},
	}
	for name, tc := range cases {
		if got := Sniff(tc.in); got != tc.want {
			t.Errorf("%s: Sniff = %q, want %q", name, got, tc.want)
		}
	}
}

func TestResampleAndDownmix(t *testing.T) {
	in := []float32{0, 1, 0, 1}
	if got := Resample(in, 16000, 16000); len(got) != 4 {
		t.Fatalf("same rate must be identity, got %v", got)
	}
	up := Resample([]float32{0, 1}, 8000, 16000)
	if len(up) != 4 || up[1] != 0.5 {
		t.Fatalf("unexpected upsample: %v", up)
	}

	mono := Downmix([]float32{1, 0, 0.5, 0.5}, 2)
	if len(mono) != 2 || mono[0] != 0.5 || mono[1] != 0.5 {
		t.Fatalf("unexpected downmix: %v", mono)
	}
}
