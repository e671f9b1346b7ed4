package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanupServiceDeletesOnlyStaleRooms(t *testing.T) {
	now := time.Now().UTC()
	stale := testRoom("1111", "teacher-1")
	stale.LastActivity = now.Add(-8 * 24 * time.Hour)
	fresh := testRoom("2222", "teacher-2")
	fresh.LastActivity = now.Add(-time.Hour)

	rooms := newRoomRepoStub(stale, fresh)
	svc := NewCleanupService(rooms, testLogger())

	deleted, err := svc.ExpireStaleRooms(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, err = rooms.Get(context.Background(), "1111")
	require.Error(t, err)

	_, err = rooms.Get(context.Background(), "2222")
	require.NoError(t, err)
}

func TestCleanupServiceNothingStale(t *testing.T) {
	room := testRoom("1234", "teacher-1")
	rooms := newRoomRepoStub(room)
	svc := NewCleanupService(rooms, testLogger())

	deleted, err := svc.ExpireStaleRooms(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, deleted)
}
