package models

import (
	"fmt"
	"time"
)

// Prize is a catalog item bought with points. Redeemed never exceeds TotalAvailable.
type Prize struct {
	ID             string `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"not null" json:"name"`
	Cost           int64  `gorm:"not null" json:"cost"`
	Description    string `gorm:"type:text" json:"description,omitempty"`
	Icon           string `json:"icon,omitempty"`
	InStock        bool   `gorm:"not null" json:"in_stock"`
	TotalAvailable int    `gorm:"not null" json:"total_available"`
	Redeemed       int    `gorm:"not null" json:"redeemed"`

	Timestamps
}

func (p *Prize) Remaining() int {
	if p.Redeemed >= p.TotalAvailable {
		return 0
	}
	return p.TotalAvailable - p.Redeemed
}

// Claim is the audit record of one prize unit bought by one user.
type Claim struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index:idx_claims_user_prize;not null" json:"user_id"`
	PrizeID   string    `gorm:"index:idx_claims_user_prize;not null" json:"prize_id"`
	PrizeName string    `json:"prize_name"`
	PrizeCost int64     `gorm:"not null" json:"prize_cost"`
	ClaimedAt time.Time `gorm:"not null" json:"timestamp"`
}

// ClaimID is "{userId}_{prizeId}_{unix millis}".
func ClaimID(userID, prizeID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", userID, prizeID, at.UnixMilli())
}
