package models

import "time"

// Code is a redeemable token printed at a physical location.
// ID is stored uppercase and doubles as the redemption key.
type Code struct {
	ID          string  `gorm:"primaryKey" json:"id"`
	Value       int64   `gorm:"not null" json:"value"`
	Description string  `gorm:"type:text" json:"description,omitempty"`
	BadgeID     *string `gorm:"index" json:"badge_id"`
	Hint        string  `gorm:"type:text" json:"hint,omitempty"`
	Order       int     `gorm:"column:sort_order;not null" json:"order"`
	Active      bool    `gorm:"not null;index" json:"active"`

	Timestamps
}

// Redemption records one user redeeming one code. ID is "{userId}_{codeId}".
type Redemption struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	CodeID     string    `gorm:"index;not null" json:"code_id"`
	RedeemedAt time.Time `gorm:"not null" json:"timestamp"`
}

func RedemptionID(userID, codeID string) string {
	return userID + "_" + codeID
}
