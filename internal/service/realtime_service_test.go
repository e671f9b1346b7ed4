package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
)

func newTestRealtimeService(t *testing.T, rooms *roomRepoStub) (*realtimeService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	svc := NewRealtimeService(rooms, client, "kita:test", nil, testLogger()).(*realtimeService)
	return svc, mr
}

func registerTestClient(svc *realtimeService, uid, roomCode string) *roomClient {
	client := &roomClient{
		send:    make(chan realtimeFrame, realtimeSendBuffer),
		options: ConnectionOptions{UID: uid, RoomCode: roomCode},
		service: svc,
		closed:  make(chan struct{}),
		baseCtx: context.Background(),
	}
	svc.hub.register(client, nil)
	return client
}

func receiveFrame(t *testing.T, client *roomClient) realtimeFrame {
	t.Helper()
	select {
	case frame := <-client.send:
		return frame
	case <-time.After(time.Second):
		t.Fatal("expected a frame, got none")
		return realtimeFrame{}
	}
}

func requireNoFrame(t *testing.T, client *roomClient) {
	t.Helper()
	select {
	case frame := <-client.send:
		t.Fatalf("expected no frame, got %q", frame.Type)
	default:
	}
}

func TestRealtimeSnapshotCacheRoundTrip(t *testing.T) {
	svc, mr := newTestRealtimeService(t, newRoomRepoStub())
	ctx := context.Background()

	snapshot := dto.NewRoomResponse(testRoom("1234", "teacher-1"))
	svc.cacheSnapshot(ctx, snapshot)

	require.True(t, mr.Exists("kita:test:rooms:last:1234"))

	cached := svc.fetchCachedSnapshot(ctx, "1234")
	require.NotNil(t, cached)
	require.Equal(t, "1234", cached.Code)
	require.Equal(t, "teacher-1", cached.TeacherUID)
}

func TestRealtimeSnapshotCacheExpires(t *testing.T) {
	svc, mr := newTestRealtimeService(t, newRoomRepoStub())
	ctx := context.Background()

	svc.cacheSnapshot(ctx, dto.NewRoomResponse(testRoom("1234", "teacher-1")))
	mr.FastForward(snapshotCacheTTL + time.Minute)

	require.Nil(t, svc.fetchCachedSnapshot(ctx, "1234"))
}

func TestRealtimeCurrentSnapshotFallsBackToRepository(t *testing.T) {
	rooms := newRoomRepoStub(testRoom("1234", "teacher-1"))
	svc, _ := newTestRealtimeService(t, rooms)

	snapshot := svc.currentSnapshot(context.Background(), "1234")
	require.NotNil(t, snapshot)
	require.Equal(t, "teacher-1", snapshot.TeacherUID)

	require.Nil(t, svc.currentSnapshot(context.Background(), "0000"))
}

func TestRealtimeBroadcastSnapshotEmitsTransitions(t *testing.T) {
	svc, _ := newTestRealtimeService(t, newRoomRepoStub())
	client := registerTestClient(svc, "student-1", "1234")

	room := testRoom("1234", "teacher-1", func(settings *models.RoomSettings) {
		settings.AIActive = true
	})
	svc.hub.broadcastSnapshot(dto.NewRoomResponse(room))

	frame := receiveFrame(t, client)
	require.Equal(t, "snapshot", frame.Type)
	require.NotNil(t, frame.Room)
	require.Len(t, frame.Transitions, 1)

	// The identical snapshot again carries no new transitions.
	svc.hub.broadcastSnapshot(dto.NewRoomResponse(room))
	frame = receiveFrame(t, client)
	require.Empty(t, frame.Transitions)
}

func TestRealtimeRegisterSeedsProjectorState(t *testing.T) {
	svc, _ := newTestRealtimeService(t, newRoomRepoStub())

	room := testRoom("1234", "teacher-1", func(settings *models.RoomSettings) {
		settings.AIActive = true
	})
	snapshot := dto.NewRoomResponse(room)

	client := &roomClient{
		send:    make(chan realtimeFrame, realtimeSendBuffer),
		options: ConnectionOptions{UID: "teacher-1", RoomCode: "1234"},
		service: svc,
		closed:  make(chan struct{}),
		baseCtx: context.Background(),
	}
	svc.hub.register(client, &snapshot)

	frame := receiveFrame(t, client)
	require.Equal(t, "snapshot", frame.Type)
	require.Len(t, frame.Transitions, 1, "the initial snapshot reports currently active state")

	// The state seeded at registration is the same one broadcasts fold into.
	svc.hub.broadcastSnapshot(snapshot)
	require.Empty(t, receiveFrame(t, client).Transitions)

	// teacherUID is seeded too, so private messages arrive before any broadcast.
	other := &roomClient{
		send:    make(chan realtimeFrame, realtimeSendBuffer),
		options: ConnectionOptions{UID: "teacher-1", RoomCode: "5678"},
		service: svc,
		closed:  make(chan struct{}),
		baseCtx: context.Background(),
	}
	fresh := dto.NewRoomResponse(testRoom("5678", "teacher-1"))
	svc.hub.register(other, &fresh)
	receiveFrame(t, other)
	svc.hub.broadcastMessage(dto.MessageResponse{RoomCode: "5678", SenderUID: "student-9", RecipientUID: "teacher-1", IsPrivate: true, Content: "psst"})
	require.Equal(t, "psst", receiveFrame(t, other).Message.Content)
}

func TestRealtimeRegisterDuringBroadcastStorm(t *testing.T) {
	svc, _ := newTestRealtimeService(t, newRoomRepoStub())

	snapshot := dto.NewRoomResponse(testRoom("1234", "teacher-1", func(settings *models.RoomSettings) {
		settings.AIActive = true
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			svc.hub.broadcastSnapshot(snapshot)
		}
	}()

	for i := 0; i < 20; i++ {
		client := &roomClient{
			send:    make(chan realtimeFrame, realtimeSendBuffer),
			options: ConnectionOptions{UID: "student", RoomCode: "1234"},
			service: svc,
			closed:  make(chan struct{}),
			baseCtx: context.Background(),
		}
		svc.hub.register(client, &snapshot)
	}
	<-done
}

func TestRealtimePrivateMessageVisibility(t *testing.T) {
	svc, _ := newTestRealtimeService(t, newRoomRepoStub())
	teacher := registerTestClient(svc, "teacher-1", "1234")
	sender := registerTestClient(svc, "student-1", "1234")
	bystander := registerTestClient(svc, "student-2", "1234")

	// A snapshot teaches each connection who the teacher is.
	svc.hub.broadcastSnapshot(dto.NewRoomResponse(testRoom("1234", "teacher-1")))
	for _, client := range []*roomClient{teacher, sender, bystander} {
		receiveFrame(t, client)
	}

	svc.hub.broadcastMessage(dto.MessageResponse{
		RoomCode:     "1234",
		SenderUID:    "student-1",
		RecipientUID: "teacher-1",
		IsPrivate:    true,
		Content:      "question for you",
	})

	require.Equal(t, "message", receiveFrame(t, teacher).Type)
	require.Equal(t, "message", receiveFrame(t, sender).Type)
	requireNoFrame(t, bystander)

	svc.hub.broadcastMessage(dto.MessageResponse{RoomCode: "1234", SenderUID: "student-1", Content: "hi all"})
	require.Equal(t, "hi all", receiveFrame(t, bystander).Message.Content)
}

func TestRealtimeHandleEventIgnoresOwnNode(t *testing.T) {
	svc, _ := newTestRealtimeService(t, newRoomRepoStub())
	client := registerTestClient(svc, "student-1", "1234")

	snapshot := dto.NewRoomResponse(testRoom("1234", "teacher-1"))

	own, err := json.Marshal(roomEvent{Source: svc.nodeID, Snapshot: &snapshot, SentAt: time.Now().UTC()})
	require.NoError(t, err)
	svc.handleEvent(own)
	requireNoFrame(t, client)

	foreign, err := json.Marshal(roomEvent{Source: "other-node", Snapshot: &snapshot, SentAt: time.Now().UTC()})
	require.NoError(t, err)
	svc.handleEvent(foreign)
	require.Equal(t, "snapshot", receiveFrame(t, client).Type)
}

func TestRealtimeUnregisterDropsEmptyRooms(t *testing.T) {
	svc, _ := newTestRealtimeService(t, newRoomRepoStub())
	client := registerTestClient(svc, "student-1", "1234")

	svc.hub.unregister(client)
	svc.hub.unregister(client) // double unregister is safe

	svc.hub.mu.RLock()
	defer svc.hub.mu.RUnlock()
	require.Empty(t, svc.hub.rooms)
}
