//go:build whisper

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"valuebot/pkg/audioconv"
)

// maxSamples caps one voice note at two minutes.
const maxSamples = 2 * 60 * audioconv.SampleRate

// Whisper runs a local whisper.cpp model. The model is shared, so calls are
// serialized.
type Whisper struct {
	mu      sync.Mutex
	model   whisper.Model
	opt     Options
	threads int
}

func NewWhisper(modelPath string, opt Options) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Whisper{model: m, opt: opt, threads: runtime.NumCPU()}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte) (string, error) {
	pcm, err := audioconv.Decode(audio, audioconv.Options{MaxSamples: maxSamples})
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}

	lang := w.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(false)
	wctx.SetThreads(uint(w.threads))
	if w.opt.Prompt != "" {
		wctx.SetInitialPrompt(w.opt.Prompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, s.Text)
	}
	return cleanTranscript(strings.Join(parts, " "))
}
