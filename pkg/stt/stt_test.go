package stt

import (
	"errors"
	"testing"
)

func TestCleanTranscript(t *testing.T) {
	got, err := cleanTranscript("  моя   ценность\n семья ")
	if err != nil || got != "моя ценность семья" {
		t.Fatalf("cleanTranscript = %q, %v", got, err)
	}
	if _, err := cleanTranscript(" \n\t"); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	cases := []struct {
		in    []byte
		name  string
		ctype string
	}{
		{[]byte("OggS\x00"), "voice.ogg", "audio/ogg"},
		{[]byte("RIFF\x00\x00\x00\x00WAVE"), "voice.wav", "audio/wav"},
		{[]byte("ID3\x03"), "voice.mp3", "audio/mpeg"},
		{[]byte("????"), "voice.ogg", "audio/ogg"},
	}
	for _, tc := range cases {
		name, ctype := fileName(tc.in)
		if name != tc.name || ctype != tc.ctype {
			t.Errorf("fileName(%q) = %s %s, want %s %s", tc.in, name, ctype, tc.name, tc.ctype)
		}
	}
}
