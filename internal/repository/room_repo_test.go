package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kita-live/kita-api/internal/models"
)

func TestRoomRepositoryCreateGetExists(t *testing.T) {
	db := setupTestDB(t, &models.Room{})
	repo := NewRoomRepository(db)

	room := newTestRoom("4821", "teacher-1")
	require.NoError(t, repo.Create(context.Background(), &room))

	stored, err := repo.Get(context.Background(), "4821")
	require.NoError(t, err)
	require.Equal(t, "teacher-1", stored.TeacherUID)
	require.False(t, stored.Settings.Data().AIActive)
	require.Equal(t, models.DefaultAIModel, stored.Settings.Data().AIModel)

	occupied, err := repo.Exists(context.Background(), "4821")
	require.NoError(t, err)
	require.True(t, occupied)

	free, err := repo.Exists(context.Background(), "9999")
	require.NoError(t, err)
	require.False(t, free)

	_, err = repo.Get(context.Background(), "9999")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRepositoryMutatePersistsChanges(t *testing.T) {
	db := setupTestDB(t, &models.Room{})
	repo := NewRoomRepository(db)

	room := newTestRoom("1234", "teacher-1")
	require.NoError(t, repo.Create(context.Background(), &room))

	err := repo.Mutate(context.Background(), "1234", func(tx *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		settings.AIActive = true
		room.Settings = datatypes.NewJSONType(settings)
		return nil
	})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), "1234")
	require.NoError(t, err)
	require.True(t, stored.Settings.Data().AIActive)
}

func TestRoomRepositoryMutateRollsBackOnError(t *testing.T) {
	db := setupTestDB(t, &models.Room{})
	repo := NewRoomRepository(db)

	room := newTestRoom("1234", "teacher-1")
	require.NoError(t, repo.Create(context.Background(), &room))

	boom := fmt.Errorf("merge rejected")
	err := repo.Mutate(context.Background(), "1234", func(tx *gorm.DB, room *models.Room) error {
		settings := room.Settings.Data()
		settings.AIActive = true
		room.Settings = datatypes.NewJSONType(settings)
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.Get(context.Background(), "1234")
	require.NoError(t, err)
	require.False(t, stored.Settings.Data().AIActive, "failed mutation must not persist")
}

func TestRoomRepositoryMutateMissingRoom(t *testing.T) {
	db := setupTestDB(t, &models.Room{})
	repo := NewRoomRepository(db)

	err := repo.Mutate(context.Background(), "0000", func(tx *gorm.DB, room *models.Room) error {
		return nil
	})
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRepositoryListStale(t *testing.T) {
	db := setupTestDB(t, &models.Room{})
	repo := NewRoomRepository(db)

	now := time.Now().UTC()

	fresh := newTestRoom("1111", "teacher-1")
	fresh.LastActivity = now.Add(-6 * 24 * time.Hour)
	stale := newTestRoom("2222", "teacher-2")
	stale.LastActivity = now.Add(-8 * 24 * time.Hour)

	require.NoError(t, repo.Create(context.Background(), &fresh))
	require.NoError(t, repo.Create(context.Background(), &stale))

	cutoff := now.Add(-7 * 24 * time.Hour)
	rooms, err := repo.ListStale(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "2222", rooms[0].Code)
}

func TestRoomRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t, &models.Room{}, &models.RoomStudent{}, &models.RoomMessage{}, &models.QuestionHistory{})
	repo := NewRoomRepository(db)

	room := newTestRoom("1234", "teacher-1")
	require.NoError(t, repo.Create(context.Background(), &room))
	require.NoError(t, db.Create(&models.RoomStudent{UID: "s1", RoomCode: "1234", Name: "Dana", JoinedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.RoomMessage{RoomCode: "1234", Sender: "Dana", SenderUID: "s1", Content: "hi", Timestamp: time.Now()}).Error)
	require.NoError(t, db.Create(&models.QuestionHistory{PollID: "p1", RoomCode: "1234", Poll: datatypes.NewJSONType(models.Poll{ID: "p1"}), ClosedAt: time.Now()}).Error)

	require.NoError(t, repo.Delete(context.Background(), "1234"))

	_, err := repo.Get(context.Background(), "1234")
	require.ErrorIs(t, err, ErrRoomNotFound)

	var students, messages, history int64
	require.NoError(t, db.Model(&models.RoomStudent{}).Where("room_code = ?", "1234").Count(&students).Error)
	require.NoError(t, db.Model(&models.RoomMessage{}).Where("room_code = ?", "1234").Count(&messages).Error)
	require.NoError(t, db.Model(&models.QuestionHistory{}).Where("room_code = ?", "1234").Count(&history).Error)
	require.Zero(t, students)
	require.Zero(t, messages)
	require.Zero(t, history)
}

func TestStudentRepositoryUpsertKeepsOneRosterEntry(t *testing.T) {
	db := setupTestDB(t, &models.RoomStudent{})
	repo := NewStudentRepository(db)

	first := models.RoomStudent{UID: "s1", RoomCode: "1234", Name: "Dana", JoinedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, repo.Upsert(context.Background(), &first))

	renamed := models.RoomStudent{UID: "s1", RoomCode: "1234", Name: "Dana L", JoinedAt: time.Now()}
	require.NoError(t, repo.Upsert(context.Background(), &renamed))

	students, err := repo.ListByRoom(context.Background(), "1234")
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "Dana L", students[0].Name)
}

func TestMessageRepositoryOrderAndLimit(t *testing.T) {
	db := setupTestDB(t, &models.RoomMessage{})
	repo := NewMessageRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		message := models.RoomMessage{
			RoomCode:  "1234",
			Sender:    "Dana",
			SenderUID: "s1",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Save(context.Background(), &message))
	}

	messages, err := repo.ListByRoom(context.Background(), "1234", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "message 0", messages[0].Content, "oldest first")
}

func TestHistoryRepositoryArchiveIsWriteOnce(t *testing.T) {
	db := setupTestDB(t, &models.QuestionHistory{})
	repo := NewHistoryRepository(db)

	poll := models.Poll{ID: "p1", Type: models.PollTypeYesNo, Options: 2, Responses: map[string]models.PollResponse{"s1": {Choice: 1}}}
	entry := models.QuestionHistory{PollID: "p1", RoomCode: "1234", Poll: datatypes.NewJSONType(poll), ClosedAt: time.Now().UTC()}
	require.NoError(t, repo.Archive(context.Background(), &entry))

	mutated := poll
	mutated.Responses = map[string]models.PollResponse{}
	second := models.QuestionHistory{PollID: "p1", RoomCode: "1234", Poll: datatypes.NewJSONType(mutated), ClosedAt: time.Now().UTC()}
	require.NoError(t, repo.Archive(context.Background(), &second))

	entries, err := repo.ListByRoom(context.Background(), "1234")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Poll.Data().Responses, 1, "first archive wins")
}

func TestPromptRepositoryScopedToTeacher(t *testing.T) {
	db := setupTestDB(t, &models.TeacherPrompt{})
	repo := NewPromptRepository(db)

	prompt := models.TeacherPrompt{ID: "pr1", TeacherUID: "teacher-1", Title: "Math", Prompt: "You are a math tutor."}
	require.NoError(t, repo.Save(context.Background(), &prompt))

	_, err := repo.Get(context.Background(), "teacher-2", "pr1")
	require.ErrorIs(t, err, ErrLibraryEntryNotFound)

	stored, err := repo.Get(context.Background(), "teacher-1", "pr1")
	require.NoError(t, err)
	require.Equal(t, "Math", stored.Title)

	err = repo.Delete(context.Background(), "teacher-2", "pr1")
	require.ErrorIs(t, err, ErrLibraryEntryNotFound)
	require.NoError(t, repo.Delete(context.Background(), "teacher-1", "pr1"))
}

func newTestRoom(code, teacherUID string) models.Room {
	now := time.Now().UTC()
	return models.Room{
		Code:         code,
		TeacherUID:   teacherUID,
		Settings:     datatypes.NewJSONType(models.DefaultRoomSettings()),
		CreatedAt:    now,
		LastActivity: now,
	}
}

func setupTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))
	return db
}
