package telegram

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"valuebot/internal/bot"
)

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: 70},
		Text:      text,
	}
}

func noDownload(context.Context, string) ([]byte, error) { return nil, nil }

func TestToUpdateCommand(t *testing.T) {
	msg := message("/values сейчас")
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}}

	u, ok := toUpdate(msg, noDownload)
	if !ok {
		t.Fatal("expected update")
	}
	if u.Kind != bot.KindCommand || u.Command != "values" || u.Text != "сейчас" {
		t.Fatalf("unexpected update: %+v", u)
	}
	if u.UserID != 7 || u.ChatID != 70 || u.MessageID != 10 {
		t.Fatalf("ids not copied: %+v", u)
	}
}

func TestToUpdateText(t *testing.T) {
	u, ok := toUpdate(message("семья"), noDownload)
	if !ok || u.Kind != bot.KindText || u.Text != "семья" {
		t.Fatalf("unexpected update: %+v", u)
	}
}

func TestToUpdateVoiceFetchesFile(t *testing.T) {
	msg := message("")
	msg.Voice = &tgbotapi.Voice{FileID: "voice-1"}

	var asked string
	u, ok := toUpdate(msg, func(_ context.Context, id string) ([]byte, error) {
		asked = id
		return []byte("OggS"), nil
	})
	if !ok || u.Kind != bot.KindVoice {
		t.Fatalf("unexpected update: %+v", u)
	}
	data, err := u.Fetch(context.Background())
	if err != nil || string(data) != "OggS" || asked != "voice-1" {
		t.Fatalf("fetch: %q %v %q", data, err, asked)
	}
}

func TestToUpdatePicksLargestPhoto(t *testing.T) {
	msg := message("")
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 1280, Height: 960},
		{FileID: "medium", Width: 320, Height: 240},
	}

	var asked string
	u, _ := toUpdate(msg, func(_ context.Context, id string) ([]byte, error) {
		asked = id
		return nil, nil
	})
	if u.Kind != bot.KindPhoto {
		t.Fatalf("kind = %v", u.Kind)
	}
	_, _ = u.Fetch(context.Background())
	if asked != "large" {
		t.Fatalf("fetched %q, want large", asked)
	}
}

func TestToUpdateIgnoresEmpty(t *testing.T) {
	if _, ok := toUpdate(nil, noDownload); ok {
		t.Fatal("nil message must be ignored")
	}
	if _, ok := toUpdate(&tgbotapi.Message{Text: "x"}, noDownload); ok {
		t.Fatal("message without sender must be ignored")
	}
	msg := message("")
	msg.Sticker = &tgbotapi.Sticker{FileID: "s"}
	if u, ok := toUpdate(msg, noDownload); !ok || u.Kind != bot.KindOther {
		t.Fatalf("sticker should map to KindOther, got %+v", u)
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("split short = %v", got)
	}

	text := strings.Repeat("а", 6) + "\n" + strings.Repeat("б", 6)
	got := splitMessage(text, 10)
	if len(got) != 2 || got[0] != strings.Repeat("а", 6) || got[1] != strings.Repeat("б", 6) {
		t.Fatalf("split on newline = %q", got)
	}

	got = splitMessage(strings.Repeat("в", 25), 10)
	if len(got) != 3 || len([]rune(got[0])) != 10 || len([]rune(got[2])) != 5 {
		t.Fatalf("hard split = %q", got)
	}
}
