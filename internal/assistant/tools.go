package assistant

import (
	"encoding/json"
	"fmt"

	"valuebot/internal/domain"
)

// SaveValueTool is the only local function the model may call.
const SaveValueTool = "save_value"

const valuesInstructions = `The user is answering the question "what do you value?".
If the message names a personal value (for example: family, health, freedom), call save_value with that value,
a short phrase in the user's language. If it does not name a value, do not call the tool and ask the user to
name one value. Answer in Russian.`

// SaveValueSpec is offered to the model in ModeValues.
var SaveValueSpec = ToolSpec{
	Name:        SaveValueTool,
	Description: "Save a value the user declared as personally important.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":        "string",
				"description": "The value, as a short phrase.",
			},
		},
		"required": []string{"value"},
	},
}

// ToolRequest is a decoded tool call: SaveValueCall or UnknownCall.
type ToolRequest interface {
	callID() string
}

// SaveValueCall asks to persist Value. Err is set when the arguments did not
// carry a storable value.
type SaveValueCall struct {
	CallID string
	Value  string
	Err    error
}

// UnknownCall names a function this bot does not provide.
type UnknownCall struct {
	CallID string
	Name   string
}

func (c SaveValueCall) callID() string { return c.CallID }
func (c UnknownCall) callID() string   { return c.CallID }

type saveValueArgs struct {
	Value *string `json:"value"`
}

// DecodeToolCall turns a raw tool call into a ToolRequest.
func DecodeToolCall(tc ToolCall) ToolRequest {
	if tc.Name != SaveValueTool {
		return UnknownCall{CallID: tc.ID, Name: tc.Name}
	}

	var args saveValueArgs
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return SaveValueCall{CallID: tc.ID, Err: fmt.Errorf("decode arguments: %w", err)}
	}
	if args.Value == nil {
		return SaveValueCall{CallID: tc.ID, Err: domain.ErrEmptyValue}
	}
	v, err := domain.NormalizeValue(*args.Value)
	if err != nil {
		return SaveValueCall{CallID: tc.ID, Err: err}
	}
	return SaveValueCall{CallID: tc.ID, Value: v}
}

func runOptions(mode Mode) RunOptions {
	if mode != ModeValues {
		return RunOptions{}
	}
	return RunOptions{
		AdditionalInstructions: valuesInstructions,
		Tools:                  []ToolSpec{SaveValueSpec},
	}
}
