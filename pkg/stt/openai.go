package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v3"

	"valuebot/pkg/audioconv"
)

// OpenAI transcribes through the hosted whisper-1 model.
type OpenAI struct {
	client openai.Client
	model  openai.AudioModel
	opt    Options
}

func NewOpenAI(client openai.Client, opt Options) *OpenAI {
	return &OpenAI{client: client, model: openai.AudioModelWhisper1, opt: opt}
}

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}

	name, ctype := fileName(audio)
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), name, ctype),
		Model: o.model,
	}
	if o.opt.Language != "" && o.opt.Language != "auto" {
		params.Language = openai.String(o.opt.Language)
	}
	if o.opt.Prompt != "" {
		params.Prompt = openai.String(o.opt.Prompt)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return cleanTranscript(resp.Text)
}

func fileName(audio []byte) (string, string) {
	switch audioconv.Sniff(audio) {
	case audioconv.FormatWAV:
		return "voice.wav", "audio/wav"
	case audioconv.FormatMP3:
		return "voice.mp3", "audio/mpeg"
	default:
		return "voice.ogg", "audio/ogg"
	}
}
