package models

import (
	"time"
)

// Badge groups codes; redeeming every code of a badge earns BonusPoints once.
type Badge struct {
	ID          string `gorm:"primaryKey" json:"id"` // slug of Name
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	BonusPoints int64  `gorm:"not null" json:"bonus_points"`
	Active      bool   `gorm:"not null;index" json:"active"`

	Timestamps
}

// BadgeCompletion marks that a user finished a badge and received its bonus.
// Written at most once per (user, badge); ID is "{userId}_{badgeId}".
type BadgeCompletion struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	BadgeID     string    `gorm:"index;not null" json:"badge_id"`
	BonusPoints int64     `gorm:"not null" json:"bonus_points"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
}

func BadgeCompletionID(userID, badgeID string) string {
	return userID + "_" + badgeID
}
