package models

import "time"

// TeacherPrompt is a reusable system prompt owned by a teacher. When a room
// points its active_prompt_id at one of these, student AI questions are
// answered through its lens.
type TeacherPrompt struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	TeacherUID string    `gorm:"size:64;index;not null" json:"teacher_uid"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Prompt     string    `gorm:"type:text;not null" json:"prompt"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TeacherLink is a content shortcut a teacher can broadcast into the room.
type TeacherLink struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	TeacherUID  string    `gorm:"size:64;index;not null" json:"teacher_uid"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"size:1024" json:"description"`
	Icon        string    `gorm:"size:64" json:"icon"`
	URL         string    `gorm:"size:2048;not null" json:"url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
