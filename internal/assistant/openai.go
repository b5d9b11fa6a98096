package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	openai "github.com/openai/openai-go/v3"
)

// OpenAI implements Remote on the Assistants threads/runs API.
type OpenAI struct {
	client      openai.Client
	assistantID string

	mu    sync.Mutex
	names map[string]string
}

func NewOpenAI(client openai.Client, assistantID string) *OpenAI {
	return &OpenAI{
		client:      client,
		assistantID: assistantID,
		names:       make(map[string]string),
	}
}

func (o *OpenAI) CreateThread(ctx context.Context) (string, error) {
	th, err := o.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return th.ID, nil
}

func (o *OpenAI) AppendUserMessage(ctx context.Context, threadID, text string) error {
	_, err := o.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return fmt.Errorf("add message to %s: %w", threadID, err)
	}
	return nil
}

func (o *OpenAI) CreateRun(ctx context.Context, threadID string, opts RunOptions) (Run, error) {
	params := openai.BetaThreadRunNewParams{AssistantID: o.assistantID}
	if opts.AdditionalInstructions != "" {
		params.AdditionalInstructions = openai.String(opts.AdditionalInstructions)
	}
	if len(opts.Tools) > 0 {
		// Overriding tools drops the assistant's own ones, keep file_search.
		params.Tools = append(params.Tools, openai.AssistantToolUnionParam{
			OfFileSearch: &openai.FileSearchToolParam{},
		})
		for _, t := range opts.Tools {
			params.Tools = append(params.Tools, openai.AssistantToolUnionParam{
				OfFunction: &openai.FunctionToolParam{
					Function: openai.FunctionDefinitionParam{
						Name:        t.Name,
						Description: openai.String(t.Description),
						Parameters:  openai.FunctionParameters(t.Parameters),
					},
				},
			})
		}
	}

	run, err := o.client.Beta.Threads.Runs.New(ctx, threadID, params)
	if err != nil {
		return Run{}, fmt.Errorf("create run on %s: %w", threadID, err)
	}
	return convertRun(run), nil
}

func (o *OpenAI) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := o.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, err
	}
	return convertRun(run), nil
}

func (o *OpenAI) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{}
	for _, out := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(out.CallID),
			Output:     openai.String(out.Output),
		})
	}
	run, err := o.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
	if err != nil {
		return Run{}, err
	}
	return convertRun(run), nil
}

func (o *OpenAI) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := o.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID)
	return err
}

func (o *OpenAI) LatestAssistantMessage(ctx context.Context, threadID, runID string) (Message, error) {
	page, err := o.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		RunID: openai.String(runID),
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(20),
	})
	if err != nil {
		return Message{}, fmt.Errorf("list messages: %w", err)
	}

	for _, m := range page.Data {
		if m.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, c := range m.Content {
			if c.Type != "text" || c.Text.Value == "" {
				continue
			}
			out := Message{ID: m.ID, RunID: m.RunID, Text: c.Text.Value}
			for _, a := range c.Text.Annotations {
				fileID := a.FileCitation.FileID
				if fileID == "" {
					fileID = a.FilePath.FileID
				}
				out.Annotations = append(out.Annotations, Annotation{Text: a.Text, FileID: fileID})
			}
			return out, nil
		}
	}
	return Message{}, errors.New("no assistant answer in thread")
}

// FileName resolves and caches the display name of an uploaded file.
func (o *OpenAI) FileName(ctx context.Context, fileID string) (string, error) {
	o.mu.Lock()
	name, ok := o.names[fileID]
	o.mu.Unlock()
	if ok {
		return name, nil
	}

	f, err := o.client.Files.Get(ctx, fileID)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.names[fileID] = f.Filename
	o.mu.Unlock()
	return f.Filename, nil
}

func convertRun(r *openai.Run) Run {
	out := Run{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		Status:    RunStatus(r.Status),
		LastError: r.LastError.Message,
	}
	for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
