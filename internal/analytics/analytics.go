// Package analytics reports product events. Delivery is best effort and
// never fails the caller.
package analytics

import (
	"fmt"
	log "log/slog"
	"strconv"

	"github.com/amplitude/analytics-go/amplitude"
)

// Event names.
const (
	EventSessionReset    = "session_reset"
	EventValuesStarted   = "values_started"
	EventValuesListed    = "values_listed"
	EventMoodRequested   = "mood_requested"
	EventMoodAnalyzed    = "mood_analyzed"
	EventValueSaved      = "value_saved"
	EventValueRejected   = "value_rejected"
	EventValueSaveFailed = "value_save_failed"
	EventMessageAnswered = "message_answered"
	EventVoiceReceived   = "voice_received"
	EventProcessingError = "processing_error"
	EventHelpShown       = "help_shown"
)

type Tracker interface {
	Track(userID int64, event string, props map[string]any)
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Track(int64, string, map[string]any) {}
func (Nop) Close()                              {}

type trackFunc func(amplitude.Event)

// Amplitude sends events to Amplitude's HTTP API in batches.
type Amplitude struct {
	client amplitude.Client
	track  trackFunc
}

func NewAmplitude(apiKey string) *Amplitude {
	cfg := amplitude.NewConfig(apiKey)
	cfg.Logger = slogLogger{}
	client := amplitude.NewClient(cfg)
	return &Amplitude{client: client, track: client.Track}
}

func (a *Amplitude) Track(userID int64, event string, props map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Amplitude track panicked", "event", event, "panic", r)
		}
	}()

	a.track(amplitude.Event{
		EventType: event,
		EventOptions: amplitude.EventOptions{
			UserID: strconv.FormatInt(userID, 10),
		},
		EventProperties: props,
	})
	log.Debug("Amplitude event", "event", event, "user_id", userID, "props", props)
}

// Close flushes pending events.
func (a *Amplitude) Close() {
	if a.client == nil {
		return
	}
	a.client.Shutdown()
}

// New picks Amplitude when a key is configured.
func New(apiKey string) Tracker {
	if apiKey == "" {
		log.Info("Analytics disabled")
		return Nop{}
	}
	return NewAmplitude(apiKey)
}

type slogLogger struct{}

func (slogLogger) Debugf(msg string, args ...interface{}) {
	log.Debug(fmt.Sprintf(msg, args...), "component", "amplitude")
}

func (slogLogger) Infof(msg string, args ...interface{}) {
	log.Info(fmt.Sprintf(msg, args...), "component", "amplitude")
}

func (slogLogger) Warnf(msg string, args ...interface{}) {
	log.Warn(fmt.Sprintf(msg, args...), "component", "amplitude")
}

func (slogLogger) Errorf(msg string, args ...interface{}) {
	log.Error(fmt.Sprintf(msg, args...), "component", "amplitude")
}
