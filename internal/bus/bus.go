// Package bus carries chat messages over a shared websocket hub, so other
// front-ends can talk to the bot.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"valuebot/internal/bot"
)

// Broadcast addresses every node on the hub.
const Broadcast = "ALL"

const (
	KindText       = "text"
	KindVoice      = "voice"
	KindPhoto      = "photo"
	KindCommand    = "command"
	KindReply      = "reply"
	KindVoiceReply = "voice_reply"
)

type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	UserID  int64  `json:"user_id"`
	ReplyTo string `json:"reply_to,omitempty"`
	Content string `json:"content,omitempty"`
	Audio   []byte `json:"audio,omitempty"`
	Image   []byte `json:"image,omitempty"`
}

type Bus struct {
	url    string
	name   string
	dialer *websocket.Dialer

	minBackoff time.Duration
	maxBackoff time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(url, name string, httpClient *http.Client) *Bus {
	d := *websocket.DefaultDialer
	if httpClient != nil {
		if tr, ok := httpClient.Transport.(*http.Transport); ok && tr.DialContext != nil {
			d.NetDialContext = tr.DialContext
		}
	}
	return &Bus{
		url:        url,
		name:       name,
		dialer:     &d,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run connects to the hub and feeds addressed messages to sub, reconnecting
// until ctx is done.
func (b *Bus) Run(ctx context.Context, sub bot.Submitter) error {
	backoff := b.minBackoff
	for {
		err := b.session(ctx, sub)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("Bus connection lost", "url", b.url, "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > b.maxBackoff {
			backoff = b.maxBackoff
		}
	}
}

func (b *Bus) session(ctx context.Context, sub bot.Submitter) error {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	log.Info("Connected to bus", "url", b.url, "name", b.name)

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Bad bus message", "err", err)
			continue
		}
		if m.To != b.name && m.To != Broadcast {
			continue
		}
		if m.From == b.name {
			continue
		}

		u, ok := toUpdate(m)
		if !ok {
			log.Debug("Ignored bus message", "kind", m.Kind, "from", m.From)
			continue
		}
		r := &responder{bus: b, to: m.From, userID: m.UserID, replyTo: m.ID}
		if err := sub.Submit(ctx, r, u); err != nil {
			log.Warn("Update dropped", "user", u.UserID, "err", err)
		}
	}
}

// Write sends m on the current connection.
func (b *Bus) Write(m Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.From == "" {
		m.From = b.name
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return errors.New("bus not connected")
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func toUpdate(m Message) (bot.Update, bool) {
	if m.UserID == 0 {
		return bot.Update{}, false
	}
	u := bot.Update{UserID: m.UserID, ChatID: m.UserID}

	switch m.Kind {
	case KindText:
		u.Kind = bot.KindText
		u.Text = m.Content
	case KindCommand:
		u.Kind = bot.KindCommand
		u.Command = m.Content
	case KindVoice:
		u.Kind = bot.KindVoice
		u.Fetch = attachment(m.Audio)
	case KindPhoto:
		u.Kind = bot.KindPhoto
		u.Fetch = attachment(m.Image)
	default:
		return bot.Update{}, false
	}
	return u, true
}

func attachment(data []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return data, nil }
}

type responder struct {
	bus     *Bus
	to      string
	userID  int64
	replyTo string
}

func (r *responder) SendText(_ context.Context, text string) error {
	return r.bus.Write(Message{To: r.to, Kind: KindReply, UserID: r.userID, ReplyTo: r.replyTo, Content: text})
}

func (r *responder) SendVoice(_ context.Context, audio []byte) error {
	return r.bus.Write(Message{To: r.to, Kind: KindVoiceReply, UserID: r.userID, ReplyTo: r.replyTo, Audio: audio})
}
