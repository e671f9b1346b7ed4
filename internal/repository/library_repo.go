package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kita-live/kita-api/internal/models"
)

// ErrLibraryEntryNotFound indicates the prompt or link does not exist for
// the owning teacher.
var ErrLibraryEntryNotFound = errors.New("library entry not found")

// PromptRepository manages a teacher's personal prompt library. All lookups
// are scoped to the owning teacher; there is no cross-teacher visibility.
type PromptRepository interface {
	Save(ctx context.Context, prompt *models.TeacherPrompt) error
	Get(ctx context.Context, teacherUID, id string) (models.TeacherPrompt, error)
	ListByTeacher(ctx context.Context, teacherUID string) ([]models.TeacherPrompt, error)
	Delete(ctx context.Context, teacherUID, id string) error
}

// LinkRepository manages a teacher's content shortcuts.
type LinkRepository interface {
	Save(ctx context.Context, link *models.TeacherLink) error
	ListByTeacher(ctx context.Context, teacherUID string) ([]models.TeacherLink, error)
	Delete(ctx context.Context, teacherUID, id string) error
}

type promptRepository struct {
	db *gorm.DB
}

// NewPromptRepository constructs a prompt repository backed by GORM.
func NewPromptRepository(db *gorm.DB) PromptRepository {
	return &promptRepository{db: db}
}

func (r *promptRepository) Save(ctx context.Context, prompt *models.TeacherPrompt) error {
	return r.db.WithContext(ctx).Save(prompt).Error
}

func (r *promptRepository) Get(ctx context.Context, teacherUID, id string) (models.TeacherPrompt, error) {
	var prompt models.TeacherPrompt
	err := r.db.WithContext(ctx).First(&prompt, "teacher_uid = ? AND id = ?", teacherUID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TeacherPrompt{}, ErrLibraryEntryNotFound
	}
	if err != nil {
		return models.TeacherPrompt{}, err
	}
	return prompt, nil
}

func (r *promptRepository) ListByTeacher(ctx context.Context, teacherUID string) ([]models.TeacherPrompt, error) {
	var prompts []models.TeacherPrompt
	if err := r.db.WithContext(ctx).Where("teacher_uid = ?", teacherUID).Order("created_at ASC").Find(&prompts).Error; err != nil {
		return nil, err
	}
	return prompts, nil
}

func (r *promptRepository) Delete(ctx context.Context, teacherUID, id string) error {
	result := r.db.WithContext(ctx).Where("teacher_uid = ? AND id = ?", teacherUID, id).Delete(&models.TeacherPrompt{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLibraryEntryNotFound
	}
	return nil
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository constructs a link repository backed by GORM.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Save(ctx context.Context, link *models.TeacherLink) error {
	return r.db.WithContext(ctx).Save(link).Error
}

func (r *linkRepository) ListByTeacher(ctx context.Context, teacherUID string) ([]models.TeacherLink, error) {
	var links []models.TeacherLink
	if err := r.db.WithContext(ctx).Where("teacher_uid = ?", teacherUID).Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepository) Delete(ctx context.Context, teacherUID, id string) error {
	result := r.db.WithContext(ctx).Where("teacher_uid = ? AND id = ?", teacherUID, id).Delete(&models.TeacherLink{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLibraryEntryNotFound
	}
	return nil
}
