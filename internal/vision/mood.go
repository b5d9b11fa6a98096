// Package vision describes the mood of a person on a photo.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

const systemPrompt = `Ты помогаешь людям справляться с тревожностью.
Посмотри на фото и коротко опиши настроение человека на нём: одно-два предложения, по-русски, бережно и без диагнозов.
Если на фото нет человека, так и скажи.`

const userPrompt = "Проанализируй настроение человека на этом изображении."

type MoodAnalyzer struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewMoodAnalyzer(client openai.Client, model string) *MoodAnalyzer {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &MoodAnalyzer{client: client, model: model, maxTokens: 300}
}

// Analyze returns a short description of the mood on the image.
func (m *MoodAnalyzer) Analyze(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL(image),
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(m.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	mood := strings.TrimSpace(resp.Choices[0].Message.Content)
	if mood == "" {
		return "", errors.New("empty message content")
	}
	log.Debug("Mood analyzed", "chars", len(mood))
	return mood, nil
}

func dataURL(image []byte) string {
	ctype := http.DetectContentType(image)
	if !strings.HasPrefix(ctype, "image/") {
		ctype = "image/jpeg"
	}
	return "data:" + ctype + ";base64," + base64.StdEncoding.EncodeToString(image)
}
