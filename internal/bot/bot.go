// Package bot routes chat updates to the conversation, speech and vision
// services. It knows nothing about the transport that delivered them.
package bot

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"github.com/google/uuid"

	"valuebot/internal/analytics"
	"valuebot/internal/assistant"
	"valuebot/internal/conversation"
	"valuebot/internal/domain"
	"valuebot/pkg/stt"
)

type Kind int

const (
	KindText Kind = iota
	KindVoice
	KindPhoto
	KindCommand
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindPhoto:
		return "photo"
	case KindCommand:
		return "command"
	default:
		return "other"
	}
}

// Update is one inbound message. Fetch downloads the attached voice note or
// photo.
type Update struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Kind      Kind
	Command   string
	Text      string
	Fetch     func(ctx context.Context) ([]byte, error)
}

// Responder answers in the chat the update came from.
type Responder interface {
	SendText(ctx context.Context, text string) error
	SendVoice(ctx context.Context, audio []byte) error
}

// Typer is implemented by responders that can show a typing indicator.
type Typer interface {
	Typing(ctx context.Context) error
}

type Handler interface {
	Handle(ctx context.Context, r Responder, u Update)
}

type HandlerFunc func(ctx context.Context, r Responder, u Update)

func (f HandlerFunc) Handle(ctx context.Context, r Responder, u Update) { f(ctx, r, u) }

type Conversation interface {
	StartValues(ctx context.Context, userID int64) error
	Reset(ctx context.Context, userID int64) error
	State(ctx context.Context, userID int64) (domain.State, error)
	Handle(ctx context.Context, userID int64, text string) conversation.Reply
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type MoodAnalyzer interface {
	Analyze(ctx context.Context, image []byte) (string, error)
}

type ValueLister interface {
	ListValues(ctx context.Context, userID int64, limit int) ([]domain.UserValue, error)
}

type Deps struct {
	Conversation Conversation
	STT          stt.Engine
	TTS          Synthesizer // optional
	Vision       MoodAnalyzer
	Values       ValueLister
	Events       analytics.Tracker
	VoiceReplies bool
	Logger       *log.Logger
}

type Bot struct {
	conv         Conversation
	stt          stt.Engine
	tts          Synthesizer
	vision       MoodAnalyzer
	values       ValueLister
	events       analytics.Tracker
	voiceReplies bool
	log          *log.Logger
}

func New(d Deps) *Bot {
	b := &Bot{
		conv:         d.Conversation,
		stt:          d.STT,
		tts:          d.TTS,
		vision:       d.Vision,
		values:       d.Values,
		events:       d.Events,
		voiceReplies: d.VoiceReplies && d.TTS != nil,
		log:          d.Logger,
	}
	if b.events == nil {
		b.events = analytics.Nop{}
	}
	if b.log == nil {
		b.log = log.Default()
	}
	return b
}

// Handle processes one update. Errors are answered in the chat and logged,
// never returned.
func (b *Bot) Handle(ctx context.Context, r Responder, u Update) {
	l := b.log.With("turn", uuid.NewString(), "user", u.UserID, "kind", u.Kind)
	l.Debug("Update received", "message", u.MessageID)

	defer func() {
		if p := recover(); p != nil {
			l.Error("Handler panicked", "panic", p)
			b.send(ctx, l, r, msgError)
		}
	}()

	switch u.Kind {
	case KindCommand:
		b.command(ctx, l, r, u)
	case KindText:
		b.text(ctx, l, r, u, u.Text)
	case KindVoice:
		b.voice(ctx, l, r, u)
	case KindPhoto:
		b.photo(ctx, l, r, u)
	default:
		b.send(ctx, l, r, msgUnsupported)
	}
}

func (b *Bot) command(ctx context.Context, l *log.Logger, r Responder, u Update) {
	switch strings.ToLower(u.Command) {
	case "start", "reset":
		if err := b.conv.Reset(ctx, u.UserID); err != nil {
			l.Error("Reset session", "err", err)
			b.send(ctx, l, r, msgError)
			return
		}
		b.track(u, analytics.EventSessionReset, map[string]any{"command": u.Command})
		b.send(ctx, l, r, msgGreeting)

	case "values":
		if err := b.conv.StartValues(ctx, u.UserID); err != nil {
			l.Error("Start values", "err", err)
			b.send(ctx, l, r, msgError)
			return
		}
		b.track(u, analytics.EventValuesStarted, nil)
		b.send(ctx, l, r, msgAskValue)

	case "myvalues":
		vals, err := b.values.ListValues(ctx, u.UserID, listValueLimit)
		if err != nil {
			l.Error("List values", "err", err)
			b.send(ctx, l, r, msgError)
			return
		}
		b.track(u, analytics.EventValuesListed, map[string]any{"count": len(vals)})
		b.send(ctx, l, r, formatValues(vals))

	case "mood":
		b.track(u, analytics.EventMoodRequested, map[string]any{"state": b.state(ctx, l, u)})
		b.send(ctx, l, r, msgAskPhoto)

	default:
		b.track(u, analytics.EventHelpShown, map[string]any{"command": u.Command, "state": b.state(ctx, l, u)})
		b.send(ctx, l, r, msgHelp)
	}
}

func (b *Bot) text(ctx context.Context, l *log.Logger, r Responder, u Update, text string) {
	if t, ok := r.(Typer); ok {
		if err := t.Typing(ctx); err != nil {
			l.Debug("Typing indicator", "err", err)
		}
	}

	reply := b.conv.Handle(ctx, u.UserID, text)
	if reply.Err != nil {
		l.Error("Turn failed", "outcome", reply.Outcome, "mode", reply.Mode, "err", reply.Err)
	} else {
		l.Info("Turn resolved", "outcome", reply.Outcome, "mode", reply.Mode, "state", reply.State)
	}

	b.track(u, outcomeEvent(reply.Outcome), map[string]any{
		"outcome": reply.Outcome.String(),
		"state":   string(reply.State),
		"mode":    reply.Mode.String(),
	})

	text = reply.Text
	if text == "" {
		text = msgError
	}
	b.send(ctx, l, r, text)

	if u.Kind == KindVoice && b.voiceReplies && reply.Outcome == assistant.Answered {
		b.speak(ctx, l, r, text)
	}
}

func (b *Bot) voice(ctx context.Context, l *log.Logger, r Responder, u Update) {
	audio, err := fetch(ctx, u)
	if err != nil {
		l.Error("Download voice", "err", err)
		b.track(u, analytics.EventProcessingError, map[string]any{"stage": "download"})
		b.send(ctx, l, r, msgVoiceError)
		return
	}

	transcript, err := b.stt.Transcribe(ctx, audio)
	if errors.Is(err, stt.ErrNoSpeech) {
		b.track(u, analytics.EventVoiceReceived, map[string]any{"outcome": "no_speech"})
		b.send(ctx, l, r, msgNoSpeech)
		return
	}
	if err != nil {
		l.Error("Transcribe voice", "err", err)
		b.track(u, analytics.EventProcessingError, map[string]any{"stage": "transcribe"})
		b.send(ctx, l, r, msgVoiceError)
		return
	}

	l.Debug("Voice transcribed", "chars", len(transcript))
	b.track(u, analytics.EventVoiceReceived, map[string]any{"outcome": "transcribed", "bytes": len(audio)})
	b.text(ctx, l, r, u, transcript)
}

func (b *Bot) photo(ctx context.Context, l *log.Logger, r Responder, u Update) {
	img, err := fetch(ctx, u)
	if err != nil {
		l.Error("Download photo", "err", err)
		b.send(ctx, l, r, msgPhotoError)
		return
	}

	mood, err := b.vision.Analyze(ctx, img)
	if err != nil {
		l.Error("Analyze photo", "err", err)
		b.track(u, analytics.EventMoodAnalyzed, map[string]any{"outcome": "error"})
		b.send(ctx, l, r, msgPhotoError)
		return
	}
	b.track(u, analytics.EventMoodAnalyzed, map[string]any{"outcome": "ok"})
	b.send(ctx, l, r, fmt.Sprintf(msgMoodFmt, mood))
}

func (b *Bot) speak(ctx context.Context, l *log.Logger, r Responder, text string) {
	audio, err := b.tts.Synthesize(ctx, text)
	if err != nil {
		l.Warn("Synthesize reply", "err", err)
		return
	}
	if err := r.SendVoice(ctx, audio); err != nil {
		l.Warn("Send voice", "err", err)
	}
}

func (b *Bot) send(ctx context.Context, l *log.Logger, r Responder, text string) {
	if err := r.SendText(ctx, text); err != nil {
		l.Error("Send reply", "err", err)
	}
}

// state reports the conversation state for analytics; lookups never fail the turn.
func (b *Bot) state(ctx context.Context, l *log.Logger, u Update) string {
	st, err := b.conv.State(ctx, u.UserID)
	if err != nil {
		l.Warn("Read session state", "err", err)
		return "unknown"
	}
	return string(st)
}

func (b *Bot) track(u Update, event string, props map[string]any) {
	if props == nil {
		props = map[string]any{}
	}
	props["kind"] = u.Kind.String()
	b.events.Track(u.UserID, event, props)
}

func fetch(ctx context.Context, u Update) ([]byte, error) {
	if u.Fetch == nil {
		return nil, errors.New("update has no attachment")
	}
	data, err := u.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty attachment")
	}
	return data, nil
}

func outcomeEvent(o assistant.Outcome) string {
	switch o {
	case assistant.ValueSaved:
		return analytics.EventValueSaved
	case assistant.ValueRejected:
		return analytics.EventValueRejected
	case assistant.SaveFailed:
		return analytics.EventValueSaveFailed
	case assistant.Answered:
		return analytics.EventMessageAnswered
	default:
		return analytics.EventProcessingError
	}
}
