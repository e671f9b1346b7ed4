package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kita-live/kita-api/internal/models"
)

// MessageRepository persists room chat messages.
type MessageRepository interface {
	Save(ctx context.Context, message *models.RoomMessage) error
	ListByRoom(ctx context.Context, roomCode string, limit int) ([]models.RoomMessage, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(ctx context.Context, message *models.RoomMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByRoom returns messages in timestamp-ascending order, which is the only
// cross-write ordering the store guarantees.
func (r *messageRepository) ListByRoom(ctx context.Context, roomCode string, limit int) ([]models.RoomMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var messages []models.RoomMessage
	if err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).Order("timestamp ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
