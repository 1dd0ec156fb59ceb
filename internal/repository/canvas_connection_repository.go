package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schedly/schedly/internal/models"
	"gorm.io/gorm"
)

var ErrCanvasNotConnected = errors.New("no Canvas connection found")

type CanvasConnectionRepository struct {
	db *gorm.DB
}

func NewCanvasConnectionRepository(db *gorm.DB) *CanvasConnectionRepository {
	return &CanvasConnectionRepository{db: db}
}

// GetByUserID retrieves a user's Canvas connection
func (r *CanvasConnectionRepository) GetByUserID(ctx context.Context, userID string) (*models.CanvasConnection, error) {
	var conn models.CanvasConnection
	result := r.db.WithContext(ctx).First(&conn, `"userId" = ?`, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCanvasNotConnected
		}
		return nil, fmt.Errorf("failed to get Canvas connection: %w", result.Error)
	}
	return &conn, nil
}

// Create persists a new connection
func (r *CanvasConnectionRepository) Create(ctx context.Context, conn *models.CanvasConnection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("failed to create Canvas connection: %w", err)
	}
	return nil
}

// UpdateTokens persists refreshed token material
func (r *CanvasConnectionRepository) UpdateTokens(ctx context.Context, userID string, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.CanvasConnection{}).
		Where(`"userId" = ?`, userID).
		Updates(map[string]interface{}{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
			"expiresAt":    expiresAt,
			"updatedAt":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update Canvas tokens: %w", result.Error)
	}
	return nil
}
