package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kita-live/kita-api/internal/models"
)

// StudentRepository manages the per-room student roster.
type StudentRepository interface {
	Upsert(ctx context.Context, student *models.RoomStudent) error
	ListByRoom(ctx context.Context, roomCode string) ([]models.RoomStudent, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository backed by GORM.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

// Upsert records a join. Re-joining with the same session id refreshes the
// display name instead of failing.
func (r *studentRepository) Upsert(ctx context.Context, student *models.RoomStudent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}, {Name: "room_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(student).Error
}

func (r *studentRepository) ListByRoom(ctx context.Context, roomCode string) ([]models.RoomStudent, error) {
	var students []models.RoomStudent
	if err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).Order("joined_at ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}
