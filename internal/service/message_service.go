package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/repository"
)

// MessageService persists room chat and fans it out. Delivery is best
// effort; clients de-duplicate by (sender_uid, timestamp) if a message
// arrives twice.
type MessageService interface {
	Send(ctx context.Context, caller Caller, code string, req dto.SendMessageRequest) (dto.MessageResponse, error)
	History(ctx context.Context, caller Caller, code string) ([]dto.MessageResponse, error)
}

type messageService struct {
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	publisher SnapshotPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMessageService creates the chat message service.
func NewMessageService(rooms repository.RoomRepository, messages repository.MessageRepository, publisher SnapshotPublisher, validate *validator.Validate, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &messageService{
		rooms:     rooms,
		messages:  messages,
		publisher: publisher,
		validator: validate,
		sanitizer: sanitizer,
		logger:    logger.With().Str("component", "message_service").Logger(),
		now:       time.Now,
	}
}

func (s *messageService) Send(ctx context.Context, caller Caller, code string, req dto.SendMessageRequest) (dto.MessageResponse, error) {
	if caller.UID == "" {
		return dto.MessageResponse{}, ErrUnauthenticated
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	room, err := s.rooms.Get(ctx, code)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return dto.MessageResponse{}, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return dto.MessageResponse{}, fmt.Errorf("fetch room: %w", err)
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if clean == "" {
		return dto.MessageResponse{}, fmt.Errorf("%w: message content empty after sanitization", ErrInvalidArgument)
	}

	message := models.RoomMessage{
		RoomCode:     code,
		Sender:       req.Sender,
		SenderUID:    caller.UID,
		Content:      clean,
		IsTeacher:    caller.UID == room.TeacherUID,
		IsPrivate:    req.RecipientUID != "",
		RecipientUID: req.RecipientUID,
		Timestamp:    s.now().UTC(),
	}

	if err := s.messages.Save(ctx, &message); err != nil {
		return dto.MessageResponse{}, fmt.Errorf("save message: %w", err)
	}

	response := dto.NewMessageResponse(message)
	if s.publisher != nil {
		s.publisher.PublishMessage(ctx, response)
	}
	return response, nil
}

// History returns the room's messages in timestamp order, with private
// messages filtered to the teacher, the sender and the recipient.
func (s *messageService) History(ctx context.Context, caller Caller, code string) ([]dto.MessageResponse, error) {
	if caller.UID == "" {
		return nil, ErrUnauthenticated
	}

	room, err := s.rooms.Get(ctx, code)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch room: %w", err)
	}

	messages, err := s.messages.ListByRoom(ctx, code, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	isTeacher := caller.UID == room.TeacherUID
	visible := make([]models.RoomMessage, 0, len(messages))
	for _, message := range messages {
		if message.VisibleTo(caller.UID, isTeacher) {
			visible = append(visible, message)
		}
	}

	return dto.NewMessageResponseSlice(visible), nil
}
