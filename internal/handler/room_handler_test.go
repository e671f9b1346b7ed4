package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/service"
)

// roomServiceStub returns canned values and records the caller it saw.
type roomServiceStub struct {
	room       dto.RoomResponse
	students   []dto.StudentResponse
	err        error
	lastCaller service.Caller
}

func (s *roomServiceStub) Create(ctx context.Context, caller service.Caller) (dto.RoomResponse, error) {
	s.lastCaller = caller
	return s.room, s.err
}

func (s *roomServiceStub) Get(ctx context.Context, code string) (dto.RoomResponse, error) {
	return s.room, s.err
}

func (s *roomServiceStub) Join(ctx context.Context, code string, req dto.JoinRoomRequest) error {
	return s.err
}

func (s *roomServiceStub) Students(ctx context.Context, code string) ([]dto.StudentResponse, error) {
	return s.students, s.err
}

func (s *roomServiceStub) SendCommand(ctx context.Context, caller service.Caller, code string, req dto.SendCommandRequest) error {
	s.lastCaller = caller
	return s.err
}

func (s *roomServiceStub) ToggleAI(ctx context.Context, caller service.Caller, code string) (bool, error) {
	s.lastCaller = caller
	return true, s.err
}

func (s *roomServiceStub) SwitchModel(ctx context.Context, caller service.Caller, code string, req dto.SwitchModelRequest) error {
	s.lastCaller = caller
	return s.err
}

func (s *roomServiceStub) SetActivePrompt(ctx context.Context, caller service.Caller, code string, req dto.SetActivePromptRequest) error {
	s.lastCaller = caller
	return s.err
}

func (s *roomServiceStub) Reset(ctx context.Context, caller service.Caller, code string) error {
	s.lastCaller = caller
	return s.err
}

func newRoomTestApp(stub *roomServiceStub, uid string) *fiber.App {
	app := fiber.New()
	group := app.Group("/rooms")
	if uid != "" {
		group.Use(asUser(uid, "Ms. Levi"))
	}
	NewRoomHandler(stub, testLogger()).Register(group)
	return app
}

func TestRoomHandlerCreateRequiresSession(t *testing.T) {
	app := newRoomTestApp(&roomServiceStub{}, "")

	resp := performRequest(t, app, fiber.MethodPost, "/rooms", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, decodeResponse(t, resp).Success)
}

func TestRoomHandlerCreateReturnsRoom(t *testing.T) {
	stub := &roomServiceStub{room: dto.RoomResponse{Code: "1234", TeacherUID: "teacher-1"}}
	app := newRoomTestApp(stub, "teacher-1")

	resp := performRequest(t, app, fiber.MethodPost, "/rooms", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	decoded := decodeResponse(t, resp)
	require.Equal(t, "1234", dataField(t, decoded, "room_code"))
	require.Equal(t, "teacher-1", stub.lastCaller.UID)
	require.Equal(t, "Ms. Levi", stub.lastCaller.Name)
}

func TestRoomHandlerGetIsPublic(t *testing.T) {
	stub := &roomServiceStub{room: dto.RoomResponse{Code: "1234"}}
	app := newRoomTestApp(stub, "")

	resp := performRequest(t, app, fiber.MethodGet, "/rooms/1234", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not_found", service.ErrNotFound, http.StatusNotFound},
		{"precondition", service.ErrFailedPrecondition, http.StatusPreconditionFailed},
		{"invalid", service.ErrInvalidArgument, http.StatusBadRequest},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized},
		{"internal", service.ErrInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newRoomTestApp(&roomServiceStub{err: tc.err}, "teacher-1")

			resp := performRequest(t, app, fiber.MethodPost, "/rooms/1234/ai/toggle", nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, decodeResponse(t, resp).Success)
		})
	}
}

func TestRoomHandlerJoinRejectsMalformedBody(t *testing.T) {
	app := newRoomTestApp(&roomServiceStub{}, "")

	resp := performRequest(t, app, fiber.MethodPost, "/rooms/1234/join", "not an object")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoomHandlerSwitchModelPassesBody(t *testing.T) {
	stub := &roomServiceStub{}
	app := newRoomTestApp(stub, "teacher-1")

	resp := performRequest(t, app, fiber.MethodPut, "/rooms/1234/ai/model", dto.SwitchModelRequest{Model: "claude"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "teacher-1", stub.lastCaller.UID)
}
