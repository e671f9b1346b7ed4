package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionHistory is an archived copy of a poll taken at the moment it was
// closed or superseded. Entries are write-once.
type QuestionHistory struct {
	PollID   string                   `gorm:"primaryKey;size:64" json:"id"`
	RoomCode string                   `gorm:"primaryKey;size:8;index" json:"room_code"`
	Poll     datatypes.JSONType[Poll] `gorm:"type:json" json:"poll"`
	ClosedAt time.Time                `json:"closedAt"`
}
