package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/repository"
	"github.com/kita-live/kita-api/pkg/ai"
)

// StudentAIUnavailableMessage is the fixed, friendly text students see when
// the upstream call cannot be made; the underlying cause stays in the logs.
const StudentAIUnavailableMessage = "The AI assistant is unavailable right now. Please try again in a moment."

// AIService is the dispatch gateway: it authorizes one prompt against room
// settings, resolves the model and optional context, makes exactly one
// upstream call and returns the normalized reply.
type AIService interface {
	Ask(ctx context.Context, caller Caller, req dto.AskAIRequest) (dto.AskAIResponse, error)
}

type aiService struct {
	rooms     repository.RoomRepository
	prompts   repository.PromptRepository
	providers map[models.AIModel]ai.Provider
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAIService creates the dispatch gateway over the given provider set.
func NewAIService(rooms repository.RoomRepository, prompts repository.PromptRepository, providers map[models.AIModel]ai.Provider, validate *validator.Validate, logger zerolog.Logger) AIService {
	return &aiService{
		rooms:     rooms,
		prompts:   prompts,
		providers: providers,
		validator: validate,
		logger:    logger.With().Str("component", "ai_service").Logger(),
		now:       time.Now,
	}
}

func (s *aiService) Ask(ctx context.Context, caller Caller, req dto.AskAIRequest) (dto.AskAIResponse, error) {
	if caller.UID == "" {
		return dto.AskAIResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.AskAIResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	room, err := s.rooms.Get(ctx, req.RoomCode)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return dto.AskAIResponse{}, fmt.Errorf("%w: room %s", ErrNotFound, req.RoomCode)
	}
	if err != nil {
		return dto.AskAIResponse{}, fmt.Errorf("%w: fetch room: %v", ErrInternal, err)
	}

	settings := room.Settings.Data()
	isTeacherRequest := caller.UID == room.TeacherUID

	// The gate runs strictly before any upstream call. Teachers always pass.
	if !isTeacherRequest && !settings.AIActive {
		return dto.AskAIResponse{}, fmt.Errorf("%w: AI is disabled for this classroom", ErrFailedPrecondition)
	}

	prompt := req.Prompt
	if !isTeacherRequest && !req.BypassContext {
		prompt = s.injectContext(ctx, room, settings, prompt)
	}
	prompt = wrapLanguage(prompt, req.Language)

	provider, modelKey := s.resolveProvider(settings.AIModel)
	if provider == nil {
		return dto.AskAIResponse{}, fmt.Errorf("%w: no AI provider configured", ErrFailedPrecondition)
	}

	reply, err := provider.Ask(ctx, prompt)
	if err != nil {
		s.logger.Error().Err(err).Str("room_code", req.RoomCode).Str("model", string(modelKey)).Msg("upstream AI call failed")
		if errors.Is(err, ai.ErrMissingCredential) {
			if isTeacherRequest {
				return dto.AskAIResponse{}, fmt.Errorf("%w: AI service not configured: missing API key for %s", ErrFailedPrecondition, modelKey)
			}
			return dto.AskAIResponse{}, fmt.Errorf("%w: %s", ErrInternal, StudentAIUnavailableMessage)
		}
		// Upstream detail stays in the log; callers get a redacted cause.
		return dto.AskAIResponse{}, fmt.Errorf("%w: AI request failed", ErrInternal)
	}

	s.touchActivity(ctx, room.Code)

	return dto.AskAIResponse{Result: reply.Text, Model: reply.ModelName}, nil
}

// injectContext prepends the room's active teacher prompt to a student
// question. A dangling prompt reference is skipped silently rather than
// blocking the question.
func (s *aiService) injectContext(ctx context.Context, room models.Room, settings models.RoomSettings, prompt string) string {
	if settings.ActivePromptID == "" {
		return prompt
	}

	stored, err := s.prompts.Get(ctx, room.TeacherUID, settings.ActivePromptID)
	if err != nil {
		if !errors.Is(err, repository.ErrLibraryEntryNotFound) {
			s.logger.Warn().Err(err).Str("prompt_id", settings.ActivePromptID).Msg("failed to resolve active prompt")
		}
		return prompt
	}

	return fmt.Sprintf("%s\n\nStudent's question: %q", stored.Prompt, prompt)
}

// wrapLanguage is applied last so the answer-language instruction governs
// the whole composed prompt.
func wrapLanguage(prompt, language string) string {
	if language == "he" {
		return fmt.Sprintf("Please answer the following prompt in Hebrew:\n\n%q", prompt)
	}
	return fmt.Sprintf("Please answer the following prompt in English:\n\n%q", prompt)
}

func (s *aiService) resolveProvider(model models.AIModel) (ai.Provider, models.AIModel) {
	if provider, ok := s.providers[model]; ok && provider != nil {
		return provider, model
	}
	s.logger.Warn().Str("model", string(model)).Str("fallback", string(models.DefaultAIModel)).Msg("unknown ai model, using fallback")
	return s.providers[models.DefaultAIModel], models.DefaultAIModel
}

// touchActivity bumps last_activity after a successful call; a failed bump
// never fails the request. Only the activity column is written because the
// room snapshot fetched before the upstream call is stale by the time the
// provider answers, and poll responses may have merged in the meantime.
func (s *aiService) touchActivity(ctx context.Context, code string) {
	if err := s.rooms.Touch(ctx, code, s.now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("room_code", code).Msg("failed to bump room activity")
	}
}
