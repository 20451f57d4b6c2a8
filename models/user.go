package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Email is the login identifier; Password holds a bcrypt hash only.
// Auth is a comma-separated list of role tokens such as "ROLE_USER,ROLE_ADMIN".
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Name      string    `gorm:"size:64" json:"name"`
	Auth      string    `gorm:"size:255;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
