// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"valuebot/internal/bot"
)

// maxDownload bounds voice notes and photos fetched from Telegram.
const maxDownload = 20 << 20

type Client struct {
	api  *tgbotapi.BotAPI
	http *http.Client
}

func New(token string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info("Authorized on Telegram", "bot", api.Self.UserName)
	return &Client{api: api, http: httpClient}, nil
}

// Poll long-polls getUpdates until ctx is done.
func (c *Client) Poll(ctx context.Context, sub bot.Submitter) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("Failed to delete webhook", "err", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := c.api.GetUpdatesChan(cfg)
	log.Info("Polling Telegram updates")

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram updates channel closed")
			}
			c.dispatch(ctx, sub, upd)
		}
	}
}

// SetWebhook registers url with Telegram.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Info("Webhook registered", "url", url)
	return nil
}

// WebhookHandler accepts updates pushed by Telegram.
func (c *Client) WebhookHandler(ctx context.Context, sub bot.Submitter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upd, err := c.api.HandleUpdate(r)
		if err != nil {
			log.Warn("Bad webhook update", "err", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		c.dispatch(ctx, sub, *upd)
		w.WriteHeader(http.StatusOK)
	})
}

func (c *Client) dispatch(ctx context.Context, sub bot.Submitter, upd tgbotapi.Update) {
	u, ok := toUpdate(upd.Message, c.download)
	if !ok {
		return
	}
	r := &responder{api: c.api, chatID: u.ChatID}
	if err := sub.Submit(ctx, r, u); err != nil {
		log.Warn("Update dropped", "user", u.UserID, "err", err)
	}
}

func (c *Client) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload))
}

type downloader func(ctx context.Context, fileID string) ([]byte, error)

func toUpdate(msg *tgbotapi.Message, dl downloader) (bot.Update, bool) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Update{}, false
	}

	u := bot.Update{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	fetch := func(fileID string) func(context.Context) ([]byte, error) {
		return func(ctx context.Context) ([]byte, error) { return dl(ctx, fileID) }
	}

	switch {
	case msg.IsCommand():
		u.Kind = bot.KindCommand
		u.Command = msg.Command()
		u.Text = msg.CommandArguments()
	case msg.Voice != nil:
		u.Kind = bot.KindVoice
		u.Fetch = fetch(msg.Voice.FileID)
	case msg.Audio != nil:
		u.Kind = bot.KindVoice
		u.Fetch = fetch(msg.Audio.FileID)
	case len(msg.Photo) > 0:
		u.Kind = bot.KindPhoto
		u.Fetch = fetch(largestPhoto(msg.Photo).FileID)
	case msg.Text != "":
		u.Kind = bot.KindText
		u.Text = msg.Text
	default:
		u.Kind = bot.KindOther
	}
	return u, true
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}
