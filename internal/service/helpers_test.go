package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kita-live/kita-api/internal/dto"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// roomRepoStub is an in-memory RoomRepository. Mutate runs the callback with
// a nil transaction handle, which the stubs for dependent repositories
// ignore.
type roomRepoStub struct {
	mu    sync.Mutex
	rooms map[string]models.Room
}

func newRoomRepoStub(rooms ...models.Room) *roomRepoStub {
	stub := &roomRepoStub{rooms: map[string]models.Room{}}
	for _, room := range rooms {
		stub.rooms[room.Code] = room
	}
	return stub
}

func (s *roomRepoStub) Create(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = *room
	return nil
}

func (s *roomRepoStub) Get(ctx context.Context, code string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return models.Room{}, repository.ErrRoomNotFound
	}
	return room, nil
}

func (s *roomRepoStub) Exists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[code]
	return ok, nil
}

func (s *roomRepoStub) Save(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = *room
	return nil
}

func (s *roomRepoStub) Mutate(ctx context.Context, code string, fn func(tx *gorm.DB, room *models.Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return repository.ErrRoomNotFound
	}
	if err := fn(nil, &room); err != nil {
		return err
	}
	s.rooms[code] = room
	return nil
}

func (s *roomRepoStub) Touch(ctx context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return repository.ErrRoomNotFound
	}
	room.LastActivity = at
	s.rooms[code] = room
	return nil
}

func (s *roomRepoStub) ListStale(ctx context.Context, before time.Time) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []models.Room
	for _, room := range s.rooms {
		if room.LastActivity.Before(before) {
			stale = append(stale, room)
		}
	}
	return stale, nil
}

func (s *roomRepoStub) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return repository.ErrRoomNotFound
	}
	delete(s.rooms, code)
	return nil
}

type historyRepoStub struct {
	entries []models.QuestionHistory
}

func (s *historyRepoStub) Archive(ctx context.Context, entry *models.QuestionHistory) error {
	return s.ArchiveTx(nil, entry)
}

func (s *historyRepoStub) ArchiveTx(tx *gorm.DB, entry *models.QuestionHistory) error {
	for _, existing := range s.entries {
		if existing.PollID == entry.PollID && existing.RoomCode == entry.RoomCode {
			return nil
		}
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *historyRepoStub) ListByRoom(ctx context.Context, roomCode string) ([]models.QuestionHistory, error) {
	var out []models.QuestionHistory
	for _, entry := range s.entries {
		if entry.RoomCode == roomCode {
			out = append(out, entry)
		}
	}
	return out, nil
}

type promptRepoStub struct {
	prompts map[string]models.TeacherPrompt
}

func newPromptRepoStub(prompts ...models.TeacherPrompt) *promptRepoStub {
	stub := &promptRepoStub{prompts: map[string]models.TeacherPrompt{}}
	for _, prompt := range prompts {
		stub.prompts[prompt.ID] = prompt
	}
	return stub
}

func (s *promptRepoStub) Save(ctx context.Context, prompt *models.TeacherPrompt) error {
	s.prompts[prompt.ID] = *prompt
	return nil
}

func (s *promptRepoStub) Get(ctx context.Context, teacherUID, id string) (models.TeacherPrompt, error) {
	prompt, ok := s.prompts[id]
	if !ok || prompt.TeacherUID != teacherUID {
		return models.TeacherPrompt{}, repository.ErrLibraryEntryNotFound
	}
	return prompt, nil
}

func (s *promptRepoStub) ListByTeacher(ctx context.Context, teacherUID string) ([]models.TeacherPrompt, error) {
	var out []models.TeacherPrompt
	for _, prompt := range s.prompts {
		if prompt.TeacherUID == teacherUID {
			out = append(out, prompt)
		}
	}
	return out, nil
}

func (s *promptRepoStub) Delete(ctx context.Context, teacherUID, id string) error {
	prompt, ok := s.prompts[id]
	if !ok || prompt.TeacherUID != teacherUID {
		return repository.ErrLibraryEntryNotFound
	}
	delete(s.prompts, id)
	return nil
}

type messageRepoStub struct {
	messages []models.RoomMessage
}

func (s *messageRepoStub) Save(ctx context.Context, message *models.RoomMessage) error {
	message.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, *message)
	return nil
}

func (s *messageRepoStub) ListByRoom(ctx context.Context, roomCode string, limit int) ([]models.RoomMessage, error) {
	var out []models.RoomMessage
	for _, message := range s.messages {
		if message.RoomCode == roomCode {
			out = append(out, message)
		}
	}
	return out, nil
}

type studentRepoStub struct {
	students map[string]models.RoomStudent
}

func newStudentRepoStub() *studentRepoStub {
	return &studentRepoStub{students: map[string]models.RoomStudent{}}
}

func (s *studentRepoStub) Upsert(ctx context.Context, student *models.RoomStudent) error {
	s.students[student.RoomCode+"/"+student.UID] = *student
	return nil
}

func (s *studentRepoStub) ListByRoom(ctx context.Context, roomCode string) ([]models.RoomStudent, error) {
	var out []models.RoomStudent
	for _, student := range s.students {
		if student.RoomCode == roomCode {
			out = append(out, student)
		}
	}
	return out, nil
}

// recordingPublisher captures fan-out calls for assertions.
type recordingPublisher struct {
	snapshots []dto.RoomResponse
	messages  []dto.MessageResponse
}

func (p *recordingPublisher) PublishSnapshot(ctx context.Context, room dto.RoomResponse) {
	p.snapshots = append(p.snapshots, room)
}

func (p *recordingPublisher) PublishMessage(ctx context.Context, message dto.MessageResponse) {
	p.messages = append(p.messages, message)
}

func testRoom(code, teacherUID string, mutate ...func(*models.RoomSettings)) models.Room {
	settings := models.DefaultRoomSettings()
	for _, fn := range mutate {
		fn(&settings)
	}
	now := time.Now().UTC()
	return models.Room{
		Code:         code,
		TeacherUID:   teacherUID,
		Settings:     settingsJSON(settings),
		CreatedAt:    now,
		LastActivity: now,
	}
}
