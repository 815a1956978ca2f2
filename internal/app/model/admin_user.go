package model

import "time"

// AdminUser grants admin rights to exactly one email. Its presence is the
// whole authorization decision.
type AdminUser struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}
