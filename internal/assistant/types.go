// Package assistant drives conversations on a remote assistant: it appends
// user turns to a thread, runs the assistant and resolves the run, executing
// the value-saving tool when the model asks for it.
package assistant

import (
	"context"

	"valuebot/internal/domain"
)

// RunStatus mirrors the lifecycle of a remote run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Pending reports whether the run is still being worked on remotely.
func (s RunStatus) Pending() bool {
	return s == RunQueued || s == RunInProgress || s == RunCancelling
}

// Run is a snapshot of one remote run.
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCall
	LastError string
}

// ToolCall is a raw tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput answers one ToolCall.
type ToolOutput struct {
	CallID string
	Output string
}

// Annotation points at a span of the answer backed by a file.
type Annotation struct {
	Text   string
	FileID string
}

// Message is an assistant-authored text entry of a thread.
type Message struct {
	ID          string
	RunID       string
	Text        string
	Annotations []Annotation
}

// Mode selects which tools a run is offered.
type Mode int

const (
	// ModeChat is general conversation; no local tools are offered.
	ModeChat Mode = iota
	// ModeValues offers the value-saving tool.
	ModeValues
)

func (m Mode) String() string {
	switch m {
	case ModeValues:
		return "values"
	default:
		return "chat"
	}
}

// RunOptions customise a single run.
type RunOptions struct {
	AdditionalInstructions string
	// Tools overrides the assistant's tools for this run when non-empty.
	Tools []ToolSpec
}

// ToolSpec describes a function tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Remote is the model provider's thread/run API.
type Remote interface {
	CreateThread(ctx context.Context) (string, error)
	AppendUserMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID string, opts RunOptions) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	// LatestAssistantMessage returns the newest assistant text produced by runID.
	LatestAssistantMessage(ctx context.Context, threadID, runID string) (Message, error)
	FileName(ctx context.Context, fileID string) (string, error)
}

// ValueSaver persists a declared value and describes the outcome for the user.
type ValueSaver interface {
	SaveValue(ctx context.Context, v domain.NewValue) (ok bool, message string)
}
