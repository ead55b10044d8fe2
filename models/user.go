package models

import (
	"time"
)

// User is the player profile paired with an identity-provider account.
// ID is the provider's stable user id.
type User struct {
	ID                 string `gorm:"primaryKey" json:"id"`
	Email              string `gorm:"index" json:"email"`
	DisplayName        string `gorm:"not null" json:"display_name"`
	TotalPoints        int64  `gorm:"not null;index" json:"total_points"`
	PrizesClaimedCount int    `gorm:"not null" json:"prizes_claimed_count"`
	IsAdmin            bool   `gorm:"not null" json:"is_admin"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// LeaderboardEntry is one ranked row of the public points table.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalPoints int64  `json:"total_points"`
}
