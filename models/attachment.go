package models

import (
	"time"

	"gorm.io/gorm"
)

// Attachment is a file uploaded with a post. StoredFilePath is the storage key, not a public URL.
type Attachment struct {
	ID               uint       `gorm:"primaryKey" json:"idx"`
	PostID           uint       `gorm:"index;not null" json:"board_idx"`
	OriginalFileName string     `gorm:"size:255;not null" json:"original_file_name"`
	StoredFilePath   string     `gorm:"size:1024;not null" json:"-"`
	FileSize         int64      `gorm:"not null" json:"file_size"`
	CreatorID        string     `gorm:"size:255;not null" json:"creator_id"`
	CreatedDatetime  time.Time  `gorm:"<-:create;not null" json:"created_datetime"`
	UpdaterID        *string    `gorm:"size:255" json:"updater_id,omitempty"`
	UpdateDatetime   *time.Time `json:"update_datetime,omitempty"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedDatetime.IsZero() {
		a.CreatedDatetime = time.Now()
	}
	return nil
}
