// Package assistanttest provides a scripted in-memory assistant.Remote.
package assistanttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"valuebot/internal/assistant"
)

// Script drives one run. GetRun walks Steps and then stays on the last one.
type Script struct {
	Steps []assistant.Run
	Reply assistant.Message
}

// Remote is a scripted assistant.Remote. Scripts are consumed by CreateRun in
// the order they were queued; with nothing queued a run completes with Reply.
type Remote struct {
	mu sync.Mutex

	Reply string
	Files map[string]string

	AppendErr       error
	CreateThreadErr error
	GetRunErr       error
	// SubmitFailures makes that many SubmitToolOutputs calls fail first.
	SubmitFailures int

	Threads   []string
	Messages  map[string][]string
	Options   []assistant.RunOptions
	Submitted map[string][][]assistant.ToolOutput
	Cancelled []string
	Polls     int

	queue   []Script
	scripts map[string]*Script
	pos     map[string]int
	runs    int
}

func New() *Remote {
	return &Remote{
		Reply:     "ok",
		Files:     make(map[string]string),
		Messages:  make(map[string][]string),
		Submitted: make(map[string][][]assistant.ToolOutput),
		scripts:   make(map[string]*Script),
		pos:       make(map[string]int),
	}
}

// Enqueue queues a script for the next CreateRun.
func (r *Remote) Enqueue(s Script) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, s)
}

// Rewind restarts the script of runID from its first step.
func (r *Remote) Rewind(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos[runID] = 0
}

func (r *Remote) CreateThread(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateThreadErr != nil {
		return "", r.CreateThreadErr
	}
	id := fmt.Sprintf("thread_%d", len(r.Threads)+1)
	r.Threads = append(r.Threads, id)
	return id, nil
}

func (r *Remote) AppendUserMessage(_ context.Context, threadID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AppendErr != nil {
		return r.AppendErr
	}
	r.Messages[threadID] = append(r.Messages[threadID], text)
	return nil
}

func (r *Remote) CreateRun(_ context.Context, threadID string, opts assistant.RunOptions) (assistant.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs++
	id := fmt.Sprintf("run_%d", r.runs)
	r.Options = append(r.Options, opts)

	var s Script
	if len(r.queue) > 0 {
		s, r.queue = r.queue[0], r.queue[1:]
	} else {
		s = Script{Steps: []assistant.Run{Completed()}}
	}
	if s.Reply.Text == "" {
		s.Reply.Text = r.Reply
	}
	for i := range s.Steps {
		s.Steps[i].ID = id
		s.Steps[i].ThreadID = threadID
	}
	r.scripts[id] = &s
	r.pos[id] = 0

	return assistant.Run{ID: id, ThreadID: threadID, Status: assistant.RunQueued}, nil
}

func (r *Remote) GetRun(_ context.Context, _, runID string) (assistant.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Polls++
	if r.GetRunErr != nil {
		return assistant.Run{}, r.GetRunErr
	}
	s, ok := r.scripts[runID]
	if !ok || len(s.Steps) == 0 {
		return assistant.Run{}, fmt.Errorf("run %s not found", runID)
	}
	i := r.pos[runID]
	if i < len(s.Steps)-1 {
		r.pos[runID] = i + 1
	}
	return s.Steps[i], nil
}

func (r *Remote) SubmitToolOutputs(_ context.Context, _, runID string, outputs []assistant.ToolOutput) (assistant.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SubmitFailures > 0 {
		r.SubmitFailures--
		return assistant.Run{}, errors.New("submit unavailable")
	}
	r.Submitted[runID] = append(r.Submitted[runID], outputs)
	return assistant.Run{ID: runID, Status: assistant.RunQueued}, nil
}

func (r *Remote) CancelRun(_ context.Context, _, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancelled = append(r.Cancelled, runID)
	return nil
}

func (r *Remote) LatestAssistantMessage(_ context.Context, _, runID string) (assistant.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scripts[runID]
	if !ok {
		return assistant.Message{}, fmt.Errorf("run %s not found", runID)
	}
	msg := s.Reply
	msg.RunID = runID
	return msg, nil
}

func (r *Remote) FileName(_ context.Context, fileID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.Files[fileID]
	if !ok {
		return "", fmt.Errorf("file %s not found", fileID)
	}
	return name, nil
}

// Outputs returns every tool output submitted for runID.
func (r *Remote) Outputs(runID string) []assistant.ToolOutput {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assistant.ToolOutput
	for _, batch := range r.Submitted[runID] {
		out = append(out, batch...)
	}
	return out
}

func Status(s assistant.RunStatus) assistant.Run {
	return assistant.Run{Status: s}
}

func Completed() assistant.Run {
	return Status(assistant.RunCompleted)
}

func FailedWith(reason string) assistant.Run {
	return assistant.Run{Status: assistant.RunFailed, LastError: reason}
}

func RequiresAction(calls ...assistant.ToolCall) assistant.Run {
	return assistant.Run{Status: assistant.RunRequiresAction, ToolCalls: calls}
}

// SaveValue builds a save_value call carrying value.
func SaveValue(callID, value string) assistant.ToolCall {
	args, _ := json.Marshal(map[string]string{"value": value})
	return assistant.ToolCall{ID: callID, Name: assistant.SaveValueTool, Arguments: string(args)}
}

// SaveValueRaw builds a save_value call with verbatim arguments.
func SaveValueRaw(callID, args string) assistant.ToolCall {
	return assistant.ToolCall{ID: callID, Name: assistant.SaveValueTool, Arguments: args}
}

// ValuesRun is the usual values-flow run: the model calls save_value once and
// then completes.
func ValuesRun(value string) Script {
	return Script{Steps: []assistant.Run{
		Status(assistant.RunInProgress),
		RequiresAction(SaveValue("call_1", value)),
		Status(assistant.RunInProgress),
		Completed(),
	}}
}
