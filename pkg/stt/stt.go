// Package stt turns voice messages into text.
package stt

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSpeech is returned when the audio held no recognisable speech.
var ErrNoSpeech = errors.New("no speech recognised")

// Engine transcribes a complete audio file (ogg, mp3, wav).
type Engine interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Options shared by the backends.
type Options struct {
	Language string // "" or "auto" to detect
	Prompt   string // optional vocabulary hint
}

func cleanTranscript(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", ErrNoSpeech
	}
	return s, nil
}
