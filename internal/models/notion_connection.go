package models

import "time"

// NotionConnection holds a user's Notion OAuth token material plus the
// workspace identifiers needed by the sync engine. If RefreshToken is nil
// the access token is assumed non-expiring and is never auto-refreshed.
type NotionConnection struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	UserID             string     `gorm:"column:userId;uniqueIndex"`
	AccessToken        string     `gorm:"column:accessToken"`
	RefreshToken       *string    `gorm:"column:refreshToken"`
	ExpiresAt          *time.Time `gorm:"column:expiresAt"`
	WorkspaceID        *string    `gorm:"column:workspaceId"`
	BotID              *string    `gorm:"column:botId"`
	ParentPageID       *string    `gorm:"column:parentPageId"`       // undashed
	CalendarDatabaseID *string    `gorm:"column:calendarDatabaseId"` // undashed
	CreatedAt          time.Time  `gorm:"column:createdAt"`
	UpdatedAt          time.Time  `gorm:"column:updatedAt"`
}

// TableName specifies the table name for GORM
func (NotionConnection) TableName() string {
	return "notion_connection"
}
