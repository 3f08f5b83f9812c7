package model

import "time"

// User holds the display profile for a Firebase identity. Account lifecycle
// (signup, deletion cascades) lives in the account subsystem; chat reads
// nicknames and accepts profile upserts only.
type User struct {
	UID       string    `gorm:"primaryKey;size:128" json:"uid"`
	Nickname  string    `gorm:"size:60;not null" json:"nickname"`
	PhotoURL  *string   `gorm:"size:512" json:"photoUrl"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
