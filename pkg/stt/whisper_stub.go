//go:build !whisper

package stt

import (
	"context"
	"errors"
)

// ErrWhisperUnavailable is returned when the binary was built without whisper.cpp.
var ErrWhisperUnavailable = errors.New("local whisper backend not built (use -tags whisper)")

type Whisper struct{}

func NewWhisper(string, Options) (*Whisper, error) {
	return nil, ErrWhisperUnavailable
}

func (*Whisper) Close() error { return nil }

func (*Whisper) Transcribe(context.Context, []byte) (string, error) {
	return "", ErrWhisperUnavailable
}
