package models

import "time"

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

type UserCredits struct {
	UserID          string    `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Plan            string    `gorm:"column:plan;type:text;default:free" json:"plan"`
	Credits         int       `gorm:"column:credits;type:integer" json:"credits"`
	DisconnectCount int       `gorm:"column:disconnect_count;type:integer" json:"disconnect_count"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserCredits) TableName() string { return "user_credits" }

// RefundResult is what the credit collaborator reports after an early disconnect.
type RefundResult struct {
	Refunded        int `bson:"refunded" json:"refunded"`
	DisconnectCount int `bson:"disconnect_count" json:"disconnect_count"`
}
