// Package tts synthesizes voice replies.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	openai "github.com/openai/openai-go/v3"
)

// MaxInput is the longest text the speech endpoint accepts.
const MaxInput = 4096

type Speaker struct {
	client openai.Client
	model  string
	voice  string
}

func NewSpeaker(client openai.Client, model, voice string) *Speaker {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &Speaker{client: client, model: model, voice: voice}
}

// Synthesize returns an Ogg/Opus voice note for text.
func (s *Speaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = clip(strings.TrimSpace(text), MaxInput)
	if text == "" {
		return nil, errors.New("nothing to say")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatOpus,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty speech response")
	}
	return audio, nil
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
