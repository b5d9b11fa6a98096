package store

import (
	"context"
	"fmt"
	log "log/slog"

	"valuebot/internal/domain"
)

// Saver adapts a Repository to the assistant's value-saving tool: every
// outcome is reported as a flag plus a message the user can read.
type Saver struct {
	repo Repository
}

const msgSaveFailed = "Ошибка при сохранении ценности."

func NewSaver(repo Repository) *Saver {
	return &Saver{repo: repo}
}

func (s *Saver) SaveValue(ctx context.Context, v domain.NewValue) (bool, string) {
	rec, created, err := s.repo.InsertValue(ctx, v)
	if err != nil {
		log.Error("Failed to save value", "user_id", v.UserID, "source_ref", v.SourceRef, "err", err)
		return false, msgSaveFailed
	}
	if !created {
		return true, fmt.Sprintf("Ценность «%s» уже сохранена.", rec.Value)
	}

	log.Info("Value saved", "user_id", rec.UserID, "id", rec.ID)
	return true, fmt.Sprintf("Ценность «%s» успешно сохранена!", rec.Value)
}
