package telegram

import (
	"context"
	log "log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessage is Telegram's limit for one text message.
const maxMessage = 4096

type responder struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// SendText sends Markdown and falls back to plain text when Telegram cannot
// parse the entities.
func (r *responder) SendText(_ context.Context, text string) error {
	for _, part := range splitMessage(text, maxMessage) {
		m := tgbotapi.NewMessage(r.chatID, part)
		m.ParseMode = tgbotapi.ModeMarkdown
		if _, err := r.api.Send(m); err != nil {
			log.Debug("Markdown rejected, sending plain", "chat", r.chatID, "err", err)
			m.ParseMode = ""
			if _, err := r.api.Send(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *responder) SendVoice(_ context.Context, audio []byte) error {
	v := tgbotapi.NewVoice(r.chatID, tgbotapi.FileBytes{Name: "reply.ogg", Bytes: audio})
	_, err := r.api.Send(v)
	return err
}

func (r *responder) Typing(context.Context) error {
	_, err := r.api.Request(tgbotapi.NewChatAction(r.chatID, tgbotapi.ChatTyping))
	return err
}

// splitMessage cuts text into chunks of at most max runes, preferring line
// breaks.
func splitMessage(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var parts []string
	rest := []rune(text)
	for len(rest) > max {
		cut := max
		if i := strings.LastIndex(string(rest[:max]), "\n"); i > 0 {
			cut = utf8.RuneCountInString(string(rest[:max])[:i]) + 1
		}
		parts = append(parts, strings.TrimRight(string(rest[:cut]), "\n"))
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		parts = append(parts, string(rest))
	}
	return parts
}
