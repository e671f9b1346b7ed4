package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/observability"
	"github.com/kita-live/kita-api/internal/repository"
)

// PollService merges student answers into the active poll and drives the
// poll lifecycle: start (archive-then-replace), stop, explicit close.
type PollService interface {
	Start(ctx context.Context, caller Caller, code string, req dto.StartPollRequest) (models.Poll, error)
	Stop(ctx context.Context, caller Caller, code string) error
	CloseOpenQuestion(ctx context.Context, caller Caller, code string) error
	SubmitAnswer(ctx context.Context, req dto.SubmitAnswerRequest) error
	Results(ctx context.Context, caller Caller, code string) (dto.PollResultsResponse, error)
	History(ctx context.Context, caller Caller, code string) ([]dto.HistoryEntryResponse, error)
}

type pollService struct {
	rooms     repository.RoomRepository
	history   repository.HistoryRepository
	publisher SnapshotPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPollService creates the poll response aggregator.
func NewPollService(rooms repository.RoomRepository, history repository.HistoryRepository, publisher SnapshotPublisher, validate *validator.Validate, logger zerolog.Logger) PollService {
	return &pollService{
		rooms:     rooms,
		history:   history,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "poll_service").Logger(),
		now:       time.Now,
	}
}

// Start archives any currently active poll and replaces it with a fresh one.
// Both steps run in one transaction so no poll's responses can be lost
// between archive and replace.
func (s *pollService) Start(ctx context.Context, caller Caller, code string, req dto.StartPollRequest) (models.Poll, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Poll{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	pollType := models.PollType(req.Type)
	if !models.ValidPollType(pollType) {
		return models.Poll{}, fmt.Errorf("%w: unknown poll type %q", ErrInvalidArgument, req.Type)
	}

	now := s.now().UTC()
	newPoll := models.Poll{
		ID:        newPollID(now),
		Type:      pollType,
		Question:  req.Question,
		Options:   pollType.OptionCount(),
		IsActive:  true,
		CreatedAt: now,
		Responses: map[string]models.PollResponse{},
	}

	var updated models.Room
	err := s.mutateOwned(ctx, caller, code, func(tx *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		if current := settings.CurrentPoll; current != nil && current.IsActive {
			if err := s.archiveTx(tx, code, *current, now); err != nil {
				return err
			}
		}

		settings.CurrentPoll = &newPoll
		settings.LastPollActivity = &now
		room.Settings = settingsJSON(settings)
		room.LastActivity = now
		updated = *room
		return nil
	})
	if err != nil {
		return models.Poll{}, err
	}

	s.logger.Info().Str("room_code", code).Str("poll_id", newPoll.ID).Str("poll_type", string(pollType)).Msg("poll started")
	s.publish(ctx, updated)
	return newPoll, nil
}

// Stop deactivates the current poll without archiving and without clearing
// responses; the teacher still reads results afterwards.
func (s *pollService) Stop(ctx context.Context, caller Caller, code string) error {
	var updated models.Room
	err := s.mutateOwned(ctx, caller, code, func(tx *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		if settings.CurrentPoll == nil || !settings.CurrentPoll.IsActive {
			updated = *room
			return nil
		}
		settings.CurrentPoll.IsActive = false
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

// CloseOpenQuestion archives the active poll and then deactivates it, as one
// transaction. This is the explicit close action for open-ended questions.
func (s *pollService) CloseOpenQuestion(ctx context.Context, caller Caller, code string) error {
	now := s.now().UTC()
	var updated models.Room
	err := s.mutateOwned(ctx, caller, code, func(tx *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		current := settings.CurrentPoll
		if current == nil || !current.IsActive {
			updated = *room
			return nil
		}

		if err := s.archiveTx(tx, code, *current, now); err != nil {
			return err
		}

		settings.CurrentPoll.IsActive = false
		room.Settings = settingsJSON(settings)
		room.LastActivity = now
		updated = *room
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("room_code", code).Msg("open question closed")
	s.publish(ctx, updated)
	return nil
}

// SubmitAnswer merges one student answer into the active poll. Submitting to
// a closed or missing poll is not an error; the answer is just discarded.
func (s *pollService) SubmitAnswer(ctx context.Context, req dto.SubmitAnswerRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := s.now().UTC()
	var updated models.Room
	var merged bool
	err := s.rooms.Mutate(ctx, req.RoomCode, func(tx *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		poll := settings.CurrentPoll
		if poll == nil || !poll.IsActive {
			return nil
		}

		if poll.Responses == nil {
			poll.Responses = map[string]models.PollResponse{}
		}

		switch poll.Type {
		case models.PollTypeOpenText:
			var answer string
			if err := json.Unmarshal(req.Answer, &answer); err != nil || strings.TrimSpace(answer) == "" {
				return fmt.Errorf("%w: open_text answer must be a non-empty string", ErrInvalidArgument)
			}
			key := sanitizeResponseKey(req.PlayerName)
			entry := poll.Responses[key]
			entry.Answers = append(entry.Answers, answer)
			poll.Responses[key] = entry
			merged = true
		default:
			var choice int
			if err := json.Unmarshal(req.Answer, &choice); err != nil {
				return fmt.Errorf("%w: answer must be an option index", ErrInvalidArgument)
			}
			// Out-of-range votes are dropped without touching other entries.
			if choice < 1 || choice > poll.Options {
				return nil
			}
			poll.Responses[req.StudentID] = models.PollResponse{Choice: choice}
			merged = true
		}

		settings.LastPollActivity = &now
		room.Settings = settingsJSON(settings)
		updated = *room
		return nil
	})
	if errors.Is(err, repository.ErrRoomNotFound) {
		return fmt.Errorf("%w: room %s", ErrNotFound, req.RoomCode)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return err
		}
		return fmt.Errorf("%w: submit answer: %v", ErrInternal, err)
	}

	if merged {
		observability.PollSubmissions().Inc()
		s.publish(ctx, updated)
	}
	return nil
}

// Results aggregates the current poll for the teacher dashboard. Discrete
// polls count votes per option; open-text polls expose each learner's
// latest answer alongside the full revision history.
func (s *pollService) Results(ctx context.Context, caller Caller, code string) (dto.PollResultsResponse, error) {
	room, err := s.fetchOwned(ctx, caller, code)
	if err != nil {
		return dto.PollResultsResponse{}, err
	}

	poll := room.Settings.Data().CurrentPoll
	if poll == nil || poll.ID == "" {
		return dto.PollResultsResponse{}, fmt.Errorf("%w: no poll in room %s", ErrNotFound, code)
	}

	results := dto.PollResultsResponse{
		PollID:   poll.ID,
		Type:     poll.Type,
		Question: poll.Question,
		IsActive: poll.IsActive,
	}

	if poll.Type == models.PollTypeOpenText {
		for name, response := range poll.Responses {
			if len(response.Answers) == 0 {
				continue
			}
			results.Answers = append(results.Answers, dto.OpenAnswerSummary{
				Name:     name,
				Latest:   response.Answers[len(response.Answers)-1],
				Versions: len(response.Answers),
				History:  response.Answers,
			})
			results.Total++
		}
		sort.Slice(results.Answers, func(i, j int) bool {
			return results.Answers[i].Name < results.Answers[j].Name
		})
		return results, nil
	}

	results.Counts = map[int]int{}
	for _, response := range poll.Responses {
		if response.Choice < 1 || response.Choice > poll.Options {
			continue
		}
		results.Counts[response.Choice]++
		results.Total++
	}
	return results, nil
}

func (s *pollService) History(ctx context.Context, caller Caller, code string) ([]dto.HistoryEntryResponse, error) {
	if _, err := s.fetchOwned(ctx, caller, code); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return dto.NewHistoryEntryResponseSlice(entries), nil
}

func (s *pollService) archiveTx(tx *gorm.DB, code string, poll models.Poll, closedAt time.Time) error {
	entry := models.QuestionHistory{
		PollID:   poll.ID,
		RoomCode: code,
		Poll:     datatypes.NewJSONType(poll),
		ClosedAt: closedAt,
	}
	if err := s.history.ArchiveTx(tx, &entry); err != nil {
		return fmt.Errorf("archive poll %s: %w", poll.ID, err)
	}
	s.logger.Debug().Str("room_code", code).Str("poll_id", poll.ID).Msg("poll archived")
	return nil
}

func (s *pollService) mutateOwned(ctx context.Context, caller Caller, code string, fn func(tx *gorm.DB, room *models.Room) error) error {
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

func (s *pollService) fetchOwned(ctx context.Context, caller Caller, code string) (models.Room, error) {
	if caller.UID == "" {
		return models.Room{}, ErrUnauthenticated
	}
	room, err := s.rooms.Get(ctx, code)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return models.Room{}, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return models.Room{}, err
	}
	if room.TeacherUID != caller.UID {
		return models.Room{}, fmt.Errorf("%w: only the room teacher may do this", ErrFailedPrecondition)
	}
	return room, nil
}

func (s *pollService) publish(ctx context.Context, room models.Room) {
	if s.publisher == nil || room.Code == "" {
		return
	}
	s.publisher.PublishSnapshot(ctx, dto.NewRoomResponse(room))
}

func newPollID(now time.Time) string {
	return fmt.Sprintf("poll_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// sanitizeResponseKey mirrors the stored-key restrictions of the document
// paths: characters meaningful in field paths are replaced so a display name
// can never break out of the responses map.
func sanitizeResponseKey(name string) string {
	replacer := strings.NewReplacer(".", "_", "#", "_", "$", "_", "[", "_", "]", "_", "/", "_")
	return replacer.Replace(strings.TrimSpace(name))
}
