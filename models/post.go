package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a bulletin-board entry. Its attachments are owned exclusively and removed with it.
type Post struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Title           string       `gorm:"size:255" json:"title"`
	Content         string       `gorm:"type:text" json:"content"`
	HitCnt          int          `gorm:"not null;default:0" json:"hit_cnt"`
	CreatorID       string       `gorm:"size:255;not null" json:"creator_id"`
	CreatedDatetime time.Time    `gorm:"<-:create;not null" json:"created_datetime"`
	UpdaterID       *string      `gorm:"size:255" json:"updater_id,omitempty"`
	UpdateDatetime  *time.Time   `json:"update_datetime,omitempty"`
	Files           []Attachment `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"files"`
}

// BeforeCreate stamps the creation time once; the column is not writable afterwards.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedDatetime.IsZero() {
		p.CreatedDatetime = time.Now()
	}
	return nil
}
