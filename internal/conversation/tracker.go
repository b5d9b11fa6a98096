// Package conversation tracks which flow a user is in and routes each message
// to the matching assistant thread.
package conversation

import (
	"context"
	"fmt"
	log "log/slog"

	"valuebot/internal/assistant"
	"valuebot/internal/domain"
	"valuebot/internal/session"
)

// GenericError is shown when a turn could not be processed.
const GenericError = "Ошибка при обработке сообщения. Попробуй ещё раз чуть позже."

type Threads interface {
	CreateThread(ctx context.Context) (string, error)
}

type Resolver interface {
	Resolve(ctx context.Context, req assistant.Request) (assistant.Result, error)
}

// Reply is what the user should see after a turn. Err keeps the cause of a
// generic error for logging.
type Reply struct {
	Text    string
	Outcome assistant.Outcome
	Mode    assistant.Mode
	State   domain.State
	Err     error
}

type Tracker struct {
	sessions session.Store
	threads  Threads
	resolver Resolver
	locks    *session.Locker
	log      *log.Logger
}

func NewTracker(sessions session.Store, threads Threads, resolver Resolver, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{
		sessions: sessions,
		threads:  threads,
		resolver: resolver,
		locks:    session.NewLocker(),
		log:      logger,
	}
}

// StartValues opens a fresh values thread and waits for the user's value.
func (t *Tracker) StartValues(ctx context.Context, userID int64) error {
	unlock := t.locks.Lock(userID)
	defer unlock()

	sess, err := t.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	threadID, err := t.threads.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("create values thread: %w", err)
	}
	sess.State = domain.StateAwaitingValue
	sess.ValuesThreadID = threadID
	if err := t.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	t.log.Debug("Values flow started", "user", userID, "thread", threadID)
	return nil
}

// Reset drops the flow and both threads.
func (t *Tracker) Reset(ctx context.Context, userID int64) error {
	unlock := t.locks.Lock(userID)
	defer unlock()

	if err := t.sessions.Reset(ctx, userID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// State reports the user's current flow.
func (t *Tracker) State(ctx context.Context, userID int64) (domain.State, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	sess, err := t.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return domain.StateIdle, err
	}
	return sess.State, nil
}

// Handle processes one text (or transcribed voice) message.
func (t *Tracker) Handle(ctx context.Context, userID int64, text string) Reply {
	unlock := t.locks.Lock(userID)
	defer unlock()

	sess, err := t.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return Reply{Text: GenericError, Outcome: assistant.Failed, Err: fmt.Errorf("load session: %w", err)}
	}
	if sess.Awaiting() {
		return t.handleValue(ctx, sess, text)
	}
	return t.handleChat(ctx, sess, text)
}

func (t *Tracker) handleValue(ctx context.Context, sess domain.Session, text string) Reply {
	if sess.ValuesThreadID == "" {
		threadID, err := t.threads.CreateThread(ctx)
		if err != nil {
			return t.abortValues(ctx, sess, fmt.Errorf("create values thread: %w", err))
		}
		sess.ValuesThreadID = threadID
	}

	res, err := t.resolver.Resolve(ctx, assistant.Request{
		ThreadID: sess.ValuesThreadID,
		UserID:   sess.UserID,
		Text:     text,
		Mode:     assistant.ModeValues,
	})
	if err != nil {
		return t.abortValues(ctx, sess, err)
	}

	reply := Reply{Text: res.Text, Outcome: res.Outcome, Mode: assistant.ModeValues, Err: res.Err}
	switch res.Outcome {
	case assistant.ValueSaved, assistant.SaveFailed:
		sess.State = domain.StateIdle
		sess.ValuesThreadID = ""
	case assistant.ValueRejected, assistant.Answered:
		// Still waiting for a value; the text asks the user to clarify.
	default:
		r := t.abortValues(ctx, sess, res.Err)
		r.Outcome = res.Outcome
		return r
	}

	if err := t.sessions.Save(ctx, sess); err != nil {
		t.log.Error("Save session", "user", sess.UserID, "err", err)
	}
	reply.State = sess.State
	return reply
}

// abortValues returns the user to Idle after an unrecoverable error.
func (t *Tracker) abortValues(ctx context.Context, sess domain.Session, cause error) Reply {
	reply := Reply{Text: GenericError, Outcome: assistant.Failed, Mode: assistant.ModeValues, Err: cause}
	if ctx.Err() != nil {
		reply.State = sess.State
		return reply
	}

	sess.State = domain.StateIdle
	sess.ValuesThreadID = ""
	if err := t.sessions.Save(ctx, sess); err != nil {
		t.log.Error("Save session", "user", sess.UserID, "err", err)
	}
	reply.State = sess.State
	return reply
}

func (t *Tracker) handleChat(ctx context.Context, sess domain.Session, text string) Reply {
	fail := func(err error) Reply {
		return Reply{Text: GenericError, Outcome: assistant.Failed, Mode: assistant.ModeChat, State: sess.State, Err: err}
	}

	if sess.ChatThreadID == "" {
		threadID, err := t.threads.CreateThread(ctx)
		if err != nil {
			return fail(fmt.Errorf("create chat thread: %w", err))
		}
		sess.ChatThreadID = threadID
		if err := t.sessions.Save(ctx, sess); err != nil {
			return fail(fmt.Errorf("save session: %w", err))
		}
	}

	res, err := t.resolver.Resolve(ctx, assistant.Request{
		ThreadID: sess.ChatThreadID,
		UserID:   sess.UserID,
		Text:     text,
		Mode:     assistant.ModeChat,
	})
	if err != nil {
		return fail(err)
	}
	if res.Outcome == assistant.Failed || res.Outcome == assistant.Timeout {
		r := fail(res.Err)
		r.Outcome = res.Outcome
		return r
	}
	return Reply{Text: res.Text, Outcome: res.Outcome, Mode: assistant.ModeChat, State: sess.State}
}
