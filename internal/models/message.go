package models

import "time"

// RoomMessage is a chat message within a room. A private message is visible
// only to the teacher, the sender, and the named recipient; the store does
// not enforce this, so readers filter accordingly.
type RoomMessage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoomCode     string    `gorm:"size:8;index" json:"room_code"`
	Sender       string    `gorm:"size:255" json:"sender"`
	SenderUID    string    `gorm:"size:64;index" json:"sender_uid"`
	Content      string    `gorm:"type:text" json:"content"`
	IsTeacher    bool      `gorm:"not null;default:false" json:"is_teacher"`
	IsPrivate    bool      `gorm:"not null;default:false" json:"is_private"`
	RecipientUID string    `gorm:"size:64" json:"recipient_uid,omitempty"`
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
}

// VisibleTo reports whether the viewer may see this message.
func (m RoomMessage) VisibleTo(viewerUID string, isTeacher bool) bool {
	if !m.IsPrivate {
		return true
	}
	return isTeacher || m.SenderUID == viewerUID || m.RecipientUID == viewerUID
}
