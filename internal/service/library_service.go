package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/repository"
)

// LibraryService manages a teacher's personal prompts and content shortcuts.
// Everything is scoped to the calling teacher.
type LibraryService interface {
	SavePrompt(ctx context.Context, caller Caller, id string, req dto.SavePromptRequest) (dto.PromptResponse, error)
	ListPrompts(ctx context.Context, caller Caller) ([]dto.PromptResponse, error)
	DeletePrompt(ctx context.Context, caller Caller, id string) error
	SaveLink(ctx context.Context, caller Caller, id string, req dto.SaveLinkRequest) (dto.LinkResponse, error)
	ListLinks(ctx context.Context, caller Caller) ([]dto.LinkResponse, error)
	DeleteLink(ctx context.Context, caller Caller, id string) error
}

type libraryService struct {
	prompts   repository.PromptRepository
	links     repository.LinkRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewLibraryService creates the teacher library service.
func NewLibraryService(prompts repository.PromptRepository, links repository.LinkRepository, validate *validator.Validate, logger zerolog.Logger) LibraryService {
	return &libraryService{
		prompts:   prompts,
		links:     links,
		validator: validate,
		logger:    logger.With().Str("component", "library_service").Logger(),
		now:       time.Now,
	}
}

func (s *libraryService) SavePrompt(ctx context.Context, caller Caller, id string, req dto.SavePromptRequest) (dto.PromptResponse, error) {
	if caller.UID == "" {
		return dto.PromptResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PromptResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	prompt := models.TeacherPrompt{
		ID:         id,
		TeacherUID: caller.UID,
		Title:      req.Title,
		Prompt:     req.Prompt,
	}
	if prompt.ID == "" {
		prompt.ID = uuid.NewString()
	} else {
		// Updates must not cross teacher boundaries.
		existing, err := s.prompts.Get(ctx, caller.UID, prompt.ID)
		if errors.Is(err, repository.ErrLibraryEntryNotFound) {
			return dto.PromptResponse{}, fmt.Errorf("%w: prompt %s", ErrNotFound, prompt.ID)
		}
		if err != nil {
			return dto.PromptResponse{}, fmt.Errorf("fetch prompt: %w", err)
		}
		prompt.CreatedAt = existing.CreatedAt
	}

	if err := s.prompts.Save(ctx, &prompt); err != nil {
		return dto.PromptResponse{}, fmt.Errorf("save prompt: %w", err)
	}
	return dto.NewPromptResponse(prompt), nil
}

func (s *libraryService) ListPrompts(ctx context.Context, caller Caller) ([]dto.PromptResponse, error) {
	if caller.UID == "" {
		return nil, ErrUnauthenticated
	}
	prompts, err := s.prompts.ListByTeacher(ctx, caller.UID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return dto.NewPromptResponseSlice(prompts), nil
}

func (s *libraryService) DeletePrompt(ctx context.Context, caller Caller, id string) error {
	if caller.UID == "" {
		return ErrUnauthenticated
	}
	err := s.prompts.Delete(ctx, caller.UID, id)
	if errors.Is(err, repository.ErrLibraryEntryNotFound) {
		return fmt.Errorf("%w: prompt %s", ErrNotFound, id)
	}
	return err
}

func (s *libraryService) SaveLink(ctx context.Context, caller Caller, id string, req dto.SaveLinkRequest) (dto.LinkResponse, error) {
	if caller.UID == "" {
		return dto.LinkResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.LinkResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	link := models.TeacherLink{
		ID:          id,
		TeacherUID:  caller.UID,
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		URL:         req.URL,
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	if err := s.links.Save(ctx, &link); err != nil {
		return dto.LinkResponse{}, fmt.Errorf("save link: %w", err)
	}
	return dto.NewLinkResponse(link), nil
}

func (s *libraryService) ListLinks(ctx context.Context, caller Caller) ([]dto.LinkResponse, error) {
	if caller.UID == "" {
		return nil, ErrUnauthenticated
	}
	links, err := s.links.ListByTeacher(ctx, caller.UID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return dto.NewLinkResponseSlice(links), nil
}

func (s *libraryService) DeleteLink(ctx context.Context, caller Caller, id string) error {
	if caller.UID == "" {
		return ErrUnauthenticated
	}
	err := s.links.Delete(ctx, caller.UID, id)
	if errors.Is(err, repository.ErrLibraryEntryNotFound) {
		return fmt.Errorf("%w: link %s", ErrNotFound, id)
	}
	return err
}
