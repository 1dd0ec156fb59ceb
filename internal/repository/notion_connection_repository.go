package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schedly/schedly/internal/models"
	"gorm.io/gorm"
)

var ErrNotionNotConnected = errors.New("no Notion connection found")

type NotionConnectionRepository struct {
	db *gorm.DB
}

func NewNotionConnectionRepository(db *gorm.DB) *NotionConnectionRepository {
	return &NotionConnectionRepository{db: db}
}

// GetByUserID retrieves a user's Notion connection
func (r *NotionConnectionRepository) GetByUserID(ctx context.Context, userID string) (*models.NotionConnection, error) {
	var conn models.NotionConnection
	result := r.db.WithContext(ctx).First(&conn, `"userId" = ?`, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotionNotConnected
		}
		return nil, fmt.Errorf("failed to get Notion connection: %w", result.Error)
	}
	return &conn, nil
}

// Create persists a new connection
func (r *NotionConnectionRepository) Create(ctx context.Context, conn *models.NotionConnection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("failed to create Notion connection: %w", err)
	}
	return nil
}

// UpdateTokens persists refreshed token material in one write
func (r *NotionConnectionRepository) UpdateTokens(ctx context.Context, userID string, accessToken string, refreshToken *string, expiresAt *time.Time, workspaceID, botID *string) error {
	updates := map[string]interface{}{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"expiresAt":    expiresAt,
		"updatedAt":    time.Now(),
	}
	if workspaceID != nil {
		updates["workspaceId"] = workspaceID
	}
	if botID != nil {
		updates["botId"] = botID
	}
	result := r.db.WithContext(ctx).Model(&models.NotionConnection{}).
		Where(`"userId" = ?`, userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update Notion tokens: %w", result.Error)
	}
	return nil
}

// UpdateTargets persists the validated parent page and calendar database IDs
func (r *NotionConnectionRepository) UpdateTargets(ctx context.Context, userID, parentPageID, calendarDatabaseID string) error {
	result := r.db.WithContext(ctx).Model(&models.NotionConnection{}).
		Where(`"userId" = ?`, userID).
		Updates(map[string]interface{}{
			"parentPageId":       parentPageID,
			"calendarDatabaseId": calendarDatabaseID,
			"updatedAt":          time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update Notion targets: %w", result.Error)
	}
	return nil
}
