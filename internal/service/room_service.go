package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/repository"
)

const roomCodeAttempts = 20

// SnapshotPublisher fans room snapshots and chat messages out to subscribed
// clients. Implemented by the realtime service; a nil publisher disables
// fan-out (used in tests).
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, room dto.RoomResponse)
	PublishMessage(ctx context.Context, message dto.MessageResponse)
}

// RoomService owns the room lifecycle: creation, command dispatch, AI
// settings, roster, reset.
type RoomService interface {
	Create(ctx context.Context, caller Caller) (dto.RoomResponse, error)
	Get(ctx context.Context, code string) (dto.RoomResponse, error)
	Join(ctx context.Context, code string, req dto.JoinRoomRequest) error
	Students(ctx context.Context, code string) ([]dto.StudentResponse, error)
	SendCommand(ctx context.Context, caller Caller, code string, req dto.SendCommandRequest) error
	ToggleAI(ctx context.Context, caller Caller, code string) (bool, error)
	SwitchModel(ctx context.Context, caller Caller, code string, req dto.SwitchModelRequest) error
	SetActivePrompt(ctx context.Context, caller Caller, code string, req dto.SetActivePromptRequest) error
	Reset(ctx context.Context, caller Caller, code string) error
}

type roomService struct {
	rooms     repository.RoomRepository
	students  repository.StudentRepository
	prompts   repository.PromptRepository
	polls     PollService
	publisher SnapshotPublisher
	validator *validator.Validate
	logger    zerolog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
	now    func() time.Time
}

// NewRoomService creates the room state machine service.
func NewRoomService(rooms repository.RoomRepository, students repository.StudentRepository, prompts repository.PromptRepository, polls PollService, publisher SnapshotPublisher, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		students:  students,
		prompts:   prompts,
		polls:     polls,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "room_service").Logger(),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

func (s *roomService) Create(ctx context.Context, caller Caller) (dto.RoomResponse, error) {
	if caller.UID == "" {
		return dto.RoomResponse{}, ErrUnauthenticated
	}

	code, err := s.pickRoomCode(ctx)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	now := s.now().UTC()
	room := models.Room{
		Code:         code,
		TeacherUID:   caller.UID,
		Settings:     settingsJSON(models.DefaultRoomSettings()),
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := s.rooms.Create(ctx, &room); err != nil {
		return dto.RoomResponse{}, fmt.Errorf("create room: %w", err)
	}

	s.logger.Info().Str("room_code", code).Str("teacher_uid", caller.UID).Msg("room created")
	return dto.NewRoomResponse(room), nil
}

// pickRoomCode samples the 4-digit keyspace until a free code shows up. If
// the retry budget runs out, an unchecked code is accepted: collision is a
// documented risk of the short keyspace, not something we re-shape.
func (s *roomService) pickRoomCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code := s.randomCode()
		occupied, err := s.rooms.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !occupied {
			return code, nil
		}
	}

	code := s.randomCode()
	s.logger.Warn().Str("room_code", code).Msg("room code retry budget exhausted, accepting unchecked code")
	return code, nil
}

func (s *roomService) randomCode() string {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return fmt.Sprintf("%04d", 1000+s.rand.Intn(9000))
}

func (s *roomService) Get(ctx context.Context, code string) (dto.RoomResponse, error) {
	room, err := s.fetch(ctx, code)
	if err != nil {
		return dto.RoomResponse{}, err
	}
	return dto.NewRoomResponse(room), nil
}

func (s *roomService) Join(ctx context.Context, code string, req dto.JoinRoomRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if _, err := s.fetch(ctx, code); err != nil {
		return err
	}

	student := models.RoomStudent{
		UID:      req.StudentID,
		RoomCode: code,
		Name:     req.Name,
		JoinedAt: s.now().UTC(),
	}
	if err := s.students.Upsert(ctx, &student); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	s.logger.Info().Str("room_code", code).Str("student_uid", req.StudentID).Msg("student joined")
	return nil
}

func (s *roomService) Students(ctx context.Context, code string) ([]dto.StudentResponse, error) {
	if _, err := s.fetch(ctx, code); err != nil {
		return nil, err
	}
	students, err := s.students.ListByRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return dto.NewStudentResponseSlice(students), nil
}

func (s *roomService) SendCommand(ctx context.Context, caller Caller, code string, req dto.SendCommandRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var updated models.Room
	err := s.mutateOwned(ctx, caller, code, func(_ *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		settings.CurrentCommand = &models.Command{
			Command:   req.Command,
			Payload:   req.Payload,
			Timestamp: s.now().UTC(),
		}
		room.Settings = settingsJSON(settings)
		room.LastActivity = s.now().UTC()
		updated = *room
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, updated)
	return nil
}

// ToggleAI reads the current flag and writes its negation. Two teacher tabs
// toggling at once is last-write-wins, which is acceptable for a
// single-owner control.
func (s *roomService) ToggleAI(ctx context.Context, caller Caller, code string) (bool, error) {
	var (
		updated  models.Room
		aiActive bool
	)
	err := s.mutateOwned(ctx, caller, code, func(_ *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		settings.AIActive = !settings.AIActive
		room.Settings = settingsJSON(settings)
		room.LastActivity = s.now().UTC()
		updated = *room
		aiActive = settings.AIActive
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Info().Str("room_code", code).Bool("ai_active", aiActive).Msg("ai toggled")
	s.publish(ctx, updated)
	return aiActive, nil
}

func (s *roomService) SwitchModel(ctx context.Context, caller Caller, code string, req dto.SwitchModelRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	model := models.AIModel(req.Model)
	if !models.ValidAIModel(model) {
		return fmt.Errorf("%w: unknown ai model %q", ErrInvalidArgument, req.Model)
	}

	var updated models.Room
	err := s.mutateOwned(ctx, caller, code, func(_ *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		settings.AIModel = model
		room.Settings = settingsJSON(settings)
		room.LastActivity = s.now().UTC()
		updated = *room
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, updated)
	return nil
}

func (s *roomService) SetActivePrompt(ctx context.Context, caller Caller, code string, req dto.SetActivePromptRequest) error {
	var updated models.Room
	err := s.mutateOwned(ctx, caller, code, func(_ *gorm.DB, room *models.Room) error {
		if req.PromptID != "" {
			if _, err := s.prompts.Get(ctx, room.TeacherUID, req.PromptID); err != nil {
				if errors.Is(err, repository.ErrLibraryEntryNotFound) {
					return fmt.Errorf("%w: prompt %s", ErrNotFound, req.PromptID)
				}
				return fmt.Errorf("resolve prompt: %w", err)
			}
		}

		settings := room.Settings.Data()
		settings.ActivePromptID = req.PromptID
		room.Settings = settingsJSON(settings)
		room.LastActivity = s.now().UTC()
		updated = *room
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, updated)
	return nil
}

// Reset clears every student screen: blank content command plus stopping any
// active poll.
func (s *roomService) Reset(ctx context.Context, caller Caller, code string) error {
	if err := s.SendCommand(ctx, caller, code, dto.SendCommandRequest{
		Command: models.CommandLoadContent,
		Payload: map[string]interface{}{"url": "about:blank"},
	}); err != nil {
		return err
	}

	if err := s.polls.Stop(ctx, caller, code); err != nil {
		return err
	}

	s.logger.Info().Str("room_code", code).Msg("room reset")
	return nil
}

func (s *roomService) fetch(ctx context.Context, code string) (models.Room, error) {
	room, err := s.rooms.Get(ctx, code)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return models.Room{}, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("fetch room: %w", err)
	}
	return room, nil
}

// mutateOwned runs fn against the locked room row so settings changes merge
// with concurrent writers instead of overwriting them. The ownership check
// happens inside the transaction against the freshly read row.
func (s *roomService) mutateOwned(ctx context.Context, caller Caller, code string, fn func(tx *gorm.DB, room *models.Room) error) error {
	if caller.UID == "" {
		return ErrUnauthenticated
	}
	err := s.rooms.Mutate(ctx, code, func(tx *gorm.DB, room *models.Room) error {
		if room.TeacherUID != caller.UID {
			return fmt.Errorf("%w: only the room teacher may do this", ErrFailedPrecondition)
		}
		return fn(tx, room)
	})
	if errors.Is(err, repository.ErrRoomNotFound) {
		return fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	return err
}

func (s *roomService) publish(ctx context.Context, room models.Room) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishSnapshot(ctx, dto.NewRoomResponse(room))
}

func settingsJSON(settings models.RoomSettings) datatypes.JSONType[models.RoomSettings] {
	return datatypes.NewJSONType(settings)
}
