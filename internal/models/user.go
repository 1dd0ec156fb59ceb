package models

import "time"

// User represents an application user created on the first OAuth callback.
// Note: Column names use camelCase to match the Prisma/frontend schema
type User struct {
	ID                string    `gorm:"column:id;primaryKey"`
	Name              string    `gorm:"column:name"`
	Image             *string   `gorm:"column:image"`
	HasCompletedSetup bool      `gorm:"column:hasCompletedSetup"`
	CreatedAt         time.Time `gorm:"column:createdAt"`
	UpdatedAt         time.Time `gorm:"column:updatedAt"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "user"
}
