package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"valuebot/internal/bot"
)

type echoSubmitter struct {
	got chan bot.Update
}

func (s *echoSubmitter) Submit(ctx context.Context, r bot.Responder, u bot.Update) error {
	s.got <- u
	return r.SendText(ctx, "эхо: "+u.Text)
}

func TestBusRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConn <- c
	}))
	defer srv.Close()

	b := New("ws"+strings.TrimPrefix(srv.URL, "http"), "valuebot", nil)
	sub := &echoSubmitter{got: make(chan bot.Update, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, sub) }()

	var hub *websocket.Conn
	select {
	case hub = <-serverConn:
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not connect")
	}
	defer hub.Close()

	send := func(m Message) {
		data, _ := json.Marshal(m)
		if err := hub.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("hub write: %v", err)
		}
	}
	send(Message{ID: "skip", From: "vox", To: "lamp", Kind: KindText, UserID: 1, Content: "not for us"})
	send(Message{ID: "m1", From: "vox", To: "valuebot", Kind: KindText, UserID: 5, Content: "привет"})

	select {
	case u := <-sub.got:
		if u.UserID != 5 || u.Kind != bot.KindText || u.Text != "привет" {
			t.Fatalf("unexpected update %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update submitted")
	}

	_ = hub.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := hub.ReadMessage()
	if err != nil {
		t.Fatalf("hub read: %v", err)
	}
	var reply Message
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.To != "vox" || reply.From != "valuebot" || reply.Kind != KindReply || reply.ReplyTo != "m1" || reply.Content != "эхо: привет" || reply.ID == "" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestToUpdate(t *testing.T) {
	if _, ok := toUpdate(Message{Kind: KindText, Content: "x"}); ok {
		t.Fatal("messages without user must be ignored")
	}
	if _, ok := toUpdate(Message{Kind: "telemetry", UserID: 1}); ok {
		t.Fatal("unknown kinds must be ignored")
	}

	u, ok := toUpdate(Message{Kind: KindVoice, UserID: 3, Audio: []byte("OggS")})
	if !ok || u.Kind != bot.KindVoice {
		t.Fatalf("unexpected update %+v", u)
	}
	data, err := u.Fetch(context.Background())
	if err != nil || string(data) != "OggS" {
		t.Fatalf("fetch = %q, %v", data, err)
	}

	u, _ = toUpdate(Message{Kind: KindCommand, UserID: 3, Content: "values"})
	if u.Kind != bot.KindCommand || u.Command != "values" {
		t.Fatalf("unexpected command update %+v", u)
	}
}

func TestWriteWithoutConnection(t *testing.T) {
	b := New("ws://127.0.0.1:1", "valuebot", nil)
	if err := b.Write(Message{Kind: KindReply}); err == nil {
		t.Fatal("expected error when not connected")
	}
}
