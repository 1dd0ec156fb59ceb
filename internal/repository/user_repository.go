package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schedly/schedly/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", result.Error)
	}
	return &user, nil
}

// Create persists a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ListSyncEligibleIDs returns the IDs of users who finished setup and
// still hold a Notion connection. These are the cron sync targets.
func (r *UserRepository) ListSyncEligibleIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins(`JOIN notion_connection ON notion_connection."userId" = "user"."id"`).
		Where(`"user"."hasCompletedSetup" = ?`, true).
		Pluck(`"user"."id"`, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync-eligible users: %w", err)
	}
	return ids, nil
}

// MarkSetupComplete flips the hasCompletedSetup flag
func (r *UserRepository) MarkSetupComplete(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"hasCompletedSetup": true,
			"updatedAt":         time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark setup complete: %w", result.Error)
	}
	return nil
}
