package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kita-live/kita-api/internal/dto"
)

func newTestMessageService(rooms *roomRepoStub, messages *messageRepoStub, publisher SnapshotPublisher) MessageService {
	return NewMessageService(rooms, messages, publisher, testValidator(), testLogger())
}

func TestMessageServiceSendSanitizesMarkup(t *testing.T) {
	rooms := newRoomRepoStub(testRoom("1234", "teacher-1"))
	publisher := &recordingPublisher{}
	svc := newTestMessageService(rooms, &messageRepoStub{}, publisher)

	resp, err := svc.Send(context.Background(), Caller{UID: "student-1"}, "1234", dto.SendMessageRequest{
		Content: `hello<script>alert("x")</script> there<br>friend`,
		Sender:  "Dana",
	})
	require.NoError(t, err)
	require.NotContains(t, resp.Content, "<script>")
	require.Contains(t, resp.Content, "hello")
	require.Contains(t, resp.Content, "<br>", "line breaks survive sanitization")
	require.Len(t, publisher.messages, 1)
}

func TestMessageServiceSendRejectsEmptyAfterSanitization(t *testing.T) {
	rooms := newRoomRepoStub(testRoom("1234", "teacher-1"))
	svc := newTestMessageService(rooms, &messageRepoStub{}, nil)

	_, err := svc.Send(context.Background(), Caller{UID: "student-1"}, "1234", dto.SendMessageRequest{
		Content: `<script>alert("x")</script>`,
		Sender:  "Dana",
	})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMessageServiceSendDerivesTeacherFlag(t *testing.T) {
	rooms := newRoomRepoStub(testRoom("1234", "teacher-1"))
	svc := newTestMessageService(rooms, &messageRepoStub{}, nil)

	fromTeacher, err := svc.Send(context.Background(), Caller{UID: "teacher-1"}, "1234", dto.SendMessageRequest{Content: "welcome", Sender: "Ms. Levi"})
	require.NoError(t, err)
	require.True(t, fromTeacher.IsTeacher)

	fromStudent, err := svc.Send(context.Background(), Caller{UID: "student-1"}, "1234", dto.SendMessageRequest{Content: "hi", Sender: "Dana"})
	require.NoError(t, err)
	require.False(t, fromStudent.IsTeacher)
}

func TestMessageServiceHistoryFiltersPrivateMessages(t *testing.T) {
	rooms := newRoomRepoStub(testRoom("1234", "teacher-1"))
	messages := &messageRepoStub{}
	svc := newTestMessageService(rooms, messages, nil)

	send := func(uid, sender, content, recipient string) {
		_, err := svc.Send(context.Background(), Caller{UID: uid}, "1234", dto.SendMessageRequest{
			Content:      content,
			Sender:       sender,
			RecipientUID: recipient,
		})
		require.NoError(t, err)
	}

	send("student-1", "Dana", "public note", "")
	send("student-1", "Dana", "just for the teacher", "teacher-1")
	send("teacher-1", "Ms. Levi", "private reply", "student-1")

	teacherView, err := svc.History(context.Background(), Caller{UID: "teacher-1"}, "1234")
	require.NoError(t, err)
	require.Len(t, teacherView, 3, "the teacher sees everything")

	senderView, err := svc.History(context.Background(), Caller{UID: "student-1"}, "1234")
	require.NoError(t, err)
	require.Len(t, senderView, 3, "sender and recipient see their own thread")

	bystanderView, err := svc.History(context.Background(), Caller{UID: "student-2"}, "1234")
	require.NoError(t, err)
	require.Len(t, bystanderView, 1)
	require.Equal(t, "public note", bystanderView[0].Content)
}

func TestMessageServiceRequiresIdentity(t *testing.T) {
	svc := newTestMessageService(newRoomRepoStub(), &messageRepoStub{}, nil)

	_, err := svc.Send(context.Background(), Caller{}, "1234", dto.SendMessageRequest{Content: "hi", Sender: "Dana"})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.History(context.Background(), Caller{}, "1234")
	require.ErrorIs(t, err, ErrUnauthenticated)
}
