package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"valuebot/internal/domain"
)

var (
	ErrRunFailed  = errors.New("assistant run failed")
	ErrRunTimeout = errors.New("assistant run timed out")
)

// Clarification is sent when a declared value could not be stored as given.
const Clarification = "Не получилось разобрать ценность. Назови, пожалуйста, одну ценность, например «семья» или «здоровье»."

// Outcome classifies how a run resolved.
type Outcome int

const (
	Answered Outcome = iota
	ValueSaved
	ValueRejected
	SaveFailed
	Failed
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Answered:
		return "answered"
	case ValueSaved:
		return "value_saved"
	case ValueRejected:
		return "value_rejected"
	case SaveFailed:
		return "save_failed"
	case Failed:
		return "failed"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Request is one user turn to resolve on a thread.
type Request struct {
	ThreadID string
	UserID   int64
	Text     string
	Mode     Mode
}

// Result is what the caller relays to the user. Err is set for Failed and
// Timeout and wraps ErrRunFailed or ErrRunTimeout.
type Result struct {
	Outcome Outcome
	Text    string
	RunID   string
	Value   string
	Err     error
}

type Resolver struct {
	remote Remote
	saver  ValueSaver
	log    *log.Logger

	backoff        Backoff
	submitAttempts int
	submitDelay    time.Duration
	maxToolRounds  int
}

type Option func(*Resolver)

func WithBackoff(b Backoff) Option {
	return func(r *Resolver) { r.backoff = b.normalized() }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithSubmitRetry sets how tool outputs are resubmitted after a failure.
func WithSubmitRetry(attempts int, delay time.Duration) Option {
	return func(r *Resolver) {
		if attempts > 0 {
			r.submitAttempts = attempts
		}
		r.submitDelay = delay
	}
}

func NewResolver(remote Remote, saver ValueSaver, opts ...Option) *Resolver {
	r := &Resolver{
		remote:         remote,
		saver:          saver,
		log:            log.Default(),
		backoff:        DefaultBackoff(),
		submitAttempts: 3,
		submitDelay:    500 * time.Millisecond,
		maxToolRounds:  3,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve appends the user turn to the thread, starts a run and awaits it.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if req.ThreadID == "" {
		return Result{}, errors.New("resolve: empty thread id")
	}
	if err := r.remote.AppendUserMessage(ctx, req.ThreadID, req.Text); err != nil {
		return Result{}, fmt.Errorf("append message: %w", err)
	}
	run, err := r.remote.CreateRun(ctx, req.ThreadID, runOptions(req.Mode))
	if err != nil {
		return Result{}, fmt.Errorf("create run: %w", err)
	}
	r.log.Debug("Run started", "thread", req.ThreadID, "run", run.ID, "mode", req.Mode)
	return r.Await(ctx, req, run.ID)
}

// Await polls runID until it is terminal. Tool calls are executed once per
// call id; awaiting an already completed run only reads its answer.
func (r *Resolver) Await(ctx context.Context, req Request, runID string) (Result, error) {
	pctx := ctx
	ctx, cancel := context.WithTimeoutCause(ctx, r.backoff.Timeout, ErrRunTimeout)
	defer cancel()

	var (
		decided  *Result
		saveSeen bool
		rounds   int
		interval = r.backoff.Initial
	)

	for {
		run, err := r.remote.GetRun(ctx, req.ThreadID, runID)
		if err != nil {
			if errors.Is(context.Cause(ctx), ErrRunTimeout) && pctx.Err() == nil {
				return r.timedOut(pctx, req, runID, decided), nil
			}
			return Result{}, fmt.Errorf("get run %s: %w", runID, err)
		}

		switch run.Status {
		case RunCompleted:
			if decided != nil {
				return *decided, nil
			}
			return r.answer(ctx, req, runID)

		case RunRequiresAction:
			rounds++
			if rounds > r.maxToolRounds {
				r.log.Error("Too many tool rounds, cancelling run", "run", runID, "rounds", rounds)
				r.cancelRun(pctx, req.ThreadID, runID)
				if decided != nil {
					return *decided, nil
				}
				return failed(runID, fmt.Errorf("%w: tool round limit exceeded", ErrRunFailed)), nil
			}

			outputs, res := r.handleToolCalls(ctx, req, run, &saveSeen)
			if decided == nil && res != nil {
				decided = res
			}
			if err := r.submit(ctx, req.ThreadID, runID, outputs); err != nil {
				if decided != nil && decided.Outcome == ValueSaved {
					r.log.Error("Tool outputs not delivered, value kept",
						"run", runID, "user", req.UserID, "value", decided.Value, "err", err)
					r.cancelRun(pctx, req.ThreadID, runID)
					return *decided, nil
				}
				return Result{}, fmt.Errorf("submit tool outputs: %w", err)
			}
			interval = r.backoff.Initial
			continue

		case RunFailed, RunCancelled, RunExpired, RunIncomplete:
			if decided != nil {
				r.log.Warn("Run ended after tool round", "run", runID, "status", run.Status, "err", run.LastError)
				return *decided, nil
			}
			reason := run.LastError
			if reason == "" {
				reason = string(run.Status)
			}
			r.log.Warn("Run did not complete", "run", runID, "status", run.Status, "err", run.LastError)
			return failed(runID, fmt.Errorf("%w: %s", ErrRunFailed, reason)), nil

		default:
			if !run.Status.Pending() {
				r.log.Warn("Unknown run status", "run", runID, "status", run.Status)
			}
		}

		if err := sleepCtx(ctx, interval); err != nil {
			if errors.Is(context.Cause(ctx), ErrRunTimeout) && pctx.Err() == nil {
				return r.timedOut(pctx, req, runID, decided), nil
			}
			return Result{}, err
		}
		interval = r.backoff.next(interval)
	}
}

func failed(runID string, err error) Result {
	return Result{Outcome: Failed, RunID: runID, Err: err}
}

func (r *Resolver) timedOut(ctx context.Context, req Request, runID string, decided *Result) Result {
	r.log.Warn("Run timed out", "run", runID, "thread", req.ThreadID, "after", r.backoff.Timeout)
	r.cancelRun(ctx, req.ThreadID, runID)
	if decided != nil {
		return *decided
	}
	return Result{Outcome: Timeout, RunID: runID, Err: ErrRunTimeout}
}

// cancelRun is best effort and outlives the caller's deadline.
func (r *Resolver) cancelRun(ctx context.Context, threadID, runID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.remote.CancelRun(cctx, threadID, runID); err != nil {
		r.log.Warn("Cancel run", "run", runID, "err", err)
	}
}

func (r *Resolver) submit(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	attempt := 0
	return retry(ctx, r.submitAttempts, r.submitDelay, func() error {
		attempt++
		_, err := r.remote.SubmitToolOutputs(ctx, threadID, runID, outputs)
		if err != nil {
			r.log.Warn("Submit tool outputs", "run", runID, "attempt", attempt, "err", err)
		}
		return err
	})
}

type toolOutput struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func encodeOutput(o toolOutput) string {
	b, err := json.Marshal(o)
	if err != nil {
		return `{"ok":false}`
	}
	return string(b)
}

// handleToolCalls answers every call of a round. The returned result is the
// decision of the first save_value call, nil when there was none.
func (r *Resolver) handleToolCalls(ctx context.Context, req Request, run Run, saveSeen *bool) ([]ToolOutput, *Result) {
	outputs := make([]ToolOutput, 0, len(run.ToolCalls))
	var res *Result

	for _, tc := range run.ToolCalls {
		switch call := DecodeToolCall(tc).(type) {
		case UnknownCall:
			r.log.Warn("Unknown tool requested", "run", run.ID, "name", call.Name)
			outputs = append(outputs, ToolOutput{CallID: call.CallID, Output: encodeOutput(toolOutput{Error: "unknown function " + call.Name})})

		case SaveValueCall:
			if req.Mode != ModeValues {
				r.log.Warn("Tool save_value called outside values flow", "run", run.ID, "user", req.UserID)
				outputs = append(outputs, ToolOutput{CallID: call.CallID, Output: encodeOutput(toolOutput{Error: "save_value is not available in this conversation"})})
				continue
			}
			if *saveSeen {
				r.log.Error("Extra save_value call ignored", "run", run.ID, "call", call.CallID)
				outputs = append(outputs, ToolOutput{CallID: call.CallID, Output: encodeOutput(toolOutput{Error: "only one value is saved per message"})})
				continue
			}
			*saveSeen = true

			if call.Err != nil {
				r.log.Info("Rejected save_value", "run", run.ID, "user", req.UserID, "err", call.Err)
				outputs = append(outputs, ToolOutput{CallID: call.CallID, Output: encodeOutput(toolOutput{Error: "no valid value provided: " + call.Err.Error()})})
				res = &Result{Outcome: ValueRejected, Text: Clarification, RunID: run.ID}
				continue
			}

			ok, msg := r.saver.SaveValue(ctx, domain.NewValue{
				UserID:    req.UserID,
				Value:     call.Value,
				SourceRef: domain.SourceRef(run.ID, call.CallID),
			})
			outputs = append(outputs, ToolOutput{CallID: call.CallID, Output: encodeOutput(toolOutput{OK: ok, Message: msg})})
			outcome := ValueSaved
			if !ok {
				outcome = SaveFailed
			}
			res = &Result{Outcome: outcome, Text: msg, RunID: run.ID, Value: call.Value}

		default:
			r.log.Error("Unhandled tool request", "run", run.ID, "type", fmt.Sprintf("%T", call))
			outputs = append(outputs, ToolOutput{CallID: tc.ID, Output: encodeOutput(toolOutput{Error: "unsupported"})})
		}
	}
	return outputs, res
}

func (r *Resolver) answer(ctx context.Context, req Request, runID string) (Result, error) {
	msg, err := r.remote.LatestAssistantMessage(ctx, req.ThreadID, runID)
	if err != nil {
		return Result{}, fmt.Errorf("read answer: %w", err)
	}
	return Result{
		Outcome: Answered,
		Text:    r.withCitations(ctx, msg),
		RunID:   runID,
	}, nil
}
