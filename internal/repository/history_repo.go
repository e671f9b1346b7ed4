package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kita-live/kita-api/internal/models"
)

// HistoryRepository stores archived polls. Entries are write-once; archiving
// the same poll twice is a no-op.
type HistoryRepository interface {
	Archive(ctx context.Context, entry *models.QuestionHistory) error
	ArchiveTx(tx *gorm.DB, entry *models.QuestionHistory) error
	ListByRoom(ctx context.Context, roomCode string) ([]models.QuestionHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository constructs a question-history repository backed by GORM.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Archive(ctx context.Context, entry *models.QuestionHistory) error {
	return r.ArchiveTx(r.db.WithContext(ctx), entry)
}

// ArchiveTx writes the entry inside a caller-owned transaction so poll
// archiving commits atomically with the room update that supersedes it.
func (r *historyRepository) ArchiveTx(tx *gorm.DB, entry *models.QuestionHistory) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

func (r *historyRepository) ListByRoom(ctx context.Context, roomCode string) ([]models.QuestionHistory, error) {
	var entries []models.QuestionHistory
	if err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).Order("closed_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
