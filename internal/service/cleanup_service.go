package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/repository"
)

// CleanupService removes classrooms that have been idle past the retention
// window, together with their students, messages and poll history.
type CleanupService interface {
	ExpireStaleRooms(ctx context.Context, retention time.Duration) (int, error)
}

type cleanupService struct {
	rooms  repository.RoomRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewCleanupService creates the stale-room reaper.
func NewCleanupService(rooms repository.RoomRepository, logger zerolog.Logger) CleanupService {
	return &cleanupService{
		rooms:  rooms,
		logger: logger.With().Str("component", "cleanup_service").Logger(),
		now:    time.Now,
	}
}

func (s *cleanupService) ExpireStaleRooms(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	stale, err := s.rooms.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale rooms: %w", err)
	}

	deleted := 0
	for _, room := range stale {
		// One room failing should not stop the sweep.
		if err := s.rooms.Delete(ctx, room.Code); err != nil {
			s.logger.Warn().Err(err).Str("room_code", room.Code).Msg("failed to delete stale room")
			continue
		}
		deleted++
	}

	s.logger.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("stale room cleanup finished")
	return deleted, nil
}
