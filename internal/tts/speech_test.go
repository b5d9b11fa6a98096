package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

func TestSynthesize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS-voice"))
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	s := NewSpeaker(client, "", "")

	audio, err := s.Synthesize(context.Background(), "  Привет!  ")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "OggS-voice" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if got["input"] != "Привет!" || got["voice"] != "alloy" || got["model"] != "tts-1" || got["response_format"] != "opus" {
		t.Fatalf("unexpected request: %v", got)
	}
}

func TestSynthesizeEmpty(t *testing.T) {
	s := NewSpeaker(openai.NewClient(option.WithAPIKey("test")), "", "")
	if _, err := s.Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestClip(t *testing.T) {
	if got := clip("привет", 3); got != "при" {
		t.Fatalf("clip = %q", got)
	}
	if got := clip("ok", 3); got != "ok" {
		t.Fatalf("clip = %q", got)
	}
}
