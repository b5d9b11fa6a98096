package assistant

import (
	"context"
	"fmt"
	"strings"
)

// withCitations swaps each file annotation for a [n] marker and lists the
// cited files below the answer.
func (r *Resolver) withCitations(ctx context.Context, msg Message) string {
	if len(msg.Annotations) == 0 {
		return msg.Text
	}

	text := msg.Text
	var sources []string
	for i, a := range msg.Annotations {
		if a.Text == "" {
			continue
		}
		text = strings.Replace(text, a.Text, fmt.Sprintf("[%d]", i+1), 1)
		if a.FileID == "" {
			continue
		}
		name, err := r.remote.FileName(ctx, a.FileID)
		if err != nil || name == "" {
			r.log.Debug("Citation file lookup", "file", a.FileID, "err", err)
			name = a.FileID
		}
		sources = append(sources, fmt.Sprintf("[%d] %s", i+1, name))
	}
	if len(sources) == 0 {
		return text
	}
	return text + "\n\n" + strings.Join(sources, "\n")
}
