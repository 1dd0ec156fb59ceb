package models

import "time"

// CanvasConnection holds a user's Canvas LMS credentials. Each user has
// their own base URL and token; there is no shared service credential.
type CanvasConnection struct {
	ID           string     `gorm:"column:id;primaryKey"`
	UserID       string     `gorm:"column:userId;uniqueIndex"`
	BaseURL      string     `gorm:"column:baseUrl"`
	AccessToken  string     `gorm:"column:accessToken"`
	RefreshToken *string    `gorm:"column:refreshToken"`
	ExpiresAt    *time.Time `gorm:"column:expiresAt"`
	CreatedAt    time.Time  `gorm:"column:createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updatedAt"`
}

// TableName specifies the table name for GORM
func (CanvasConnection) TableName() string {
	return "canvas_connection"
}
