package assistant

import (
	"context"
	"fmt"
	log "log/slog"
	"os"

	openai "github.com/openai/openai-go/v3"
)

const knowledgeStoreName = "Anxiety_Document_Store"

// ProvisionKnowledge uploads the knowledge document into a fresh vector store
// and attaches it to the assistant as its file_search source.
func ProvisionKnowledge(ctx context.Context, client openai.Client, assistantID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open knowledge file: %w", err)
	}
	defer f.Close()

	file, err := client.Files.New(ctx, openai.FileNewParams{
		File:    f,
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	vs, err := client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name:    openai.String(knowledgeStoreName),
		FileIDs: []string{file.ID},
	})
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	log.Info("Vector store created", "id", vs.ID, "file", file.ID)

	_, err = client.Beta.Assistants.Update(ctx, assistantID, openai.BetaAssistantUpdateParams{
		Tools: []openai.AssistantToolUnionParam{
			{OfFileSearch: &openai.FileSearchToolParam{}},
		},
		ToolResources: openai.BetaAssistantUpdateParamsToolResources{
			FileSearch: openai.BetaAssistantUpdateParamsToolResourcesFileSearch{
				VectorStoreIDs: []string{vs.ID},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("update assistant %s: %w", assistantID, err)
	}
	log.Info("Assistant updated", "assistant", assistantID, "vector_store", vs.ID)
	return vs.ID, nil
}
