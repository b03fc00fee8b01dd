package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"moodjournal/internal/models"
)

const (
	sessionCachePrefix = "session:"
	sessionCacheTTL    = 24 * time.Hour
)

// Manager resolves opaque session tokens to users. The Session table is
// the source of truth; Redis only caches token->user lookups, so every
// cache write and invalidation is fire-and-forget.
type Manager struct {
	DB    *gorm.DB
	Redis *redis.Client // optional
}

func NewManager(db *gorm.DB, rdb *redis.Client) *Manager {
	return &Manager{DB: db, Redis: rdb}
}

// NewToken mints a session token: 32 hex chars, unguessable.
func NewToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Resolve maps a token to its user, creating both the user and the session
// row on first sight. New users start non-PRO.
func (m *Manager) Resolve(ctx context.Context, token string) (*models.User, error) {
	if userID := m.cachedUserID(ctx, token); userID != "" {
		var user models.User
		if err := m.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err == nil {
			return &user, nil
		}
		// Stale cache entry; fall through to the session table.
		m.invalidate(ctx, token)
	}

	var user models.User
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		err := tx.Where("token = ?", token).First(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{ID: NewToken()}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			sess = models.Session{Token: token, UserID: user.ID}
			if err := tx.Create(&sess).Error; err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up session: %w", err)
		}
		if err := tx.First(&user, "id = ?", sess.UserID).Error; err != nil {
			return fmt.Errorf("failed to load user %s: %w", sess.UserID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.cache(ctx, token, user.ID)
	return &user, nil
}

// BindEmail attaches an email to the token's current user. When the email
// already belongs to someone else the session is redirected to that user
// instead: account recovery by knowledge of the address alone, an
// inherited weakness of this design rather than an oversight.
func (m *Manager) BindEmail(ctx context.Context, token string, user *models.User, email string) (*models.User, error) {
	var result *models.User
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("email = ?", email).First(&existing).Error
		switch {
		case err == nil && existing.ID != user.ID:
			res := tx.Model(&models.Session{}).Where("token = ?", token).Update("user_id", existing.ID)
			if res.Error != nil {
				return fmt.Errorf("failed to redirect session: %w", res.Error)
			}
			result = &existing
			return nil
		case err == nil:
			result = &existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Model(user).Update("email", email).Error; err != nil {
				return fmt.Errorf("failed to set email: %w", err)
			}
			user.Email = &email
			result = user
			return nil
		default:
			return fmt.Errorf("failed to look up email: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	if result.ID != user.ID {
		log.Info().Str("from", user.ID).Str("to", result.ID).Msg("Session redirected to existing user by email")
		m.invalidate(ctx, token)
	}
	return result, nil
}

func (m *Manager) cachedUserID(ctx context.Context, token string) string {
	if m.Redis == nil {
		return ""
	}
	userID, err := m.Redis.Get(ctx, sessionCachePrefix+token).Result()
	if err != nil {
		return ""
	}
	return userID
}

func (m *Manager) cache(ctx context.Context, token, userID string) {
	if m.Redis == nil {
		return
	}
	if err := m.Redis.Set(ctx, sessionCachePrefix+token, userID, sessionCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to cache session")
	}
}

func (m *Manager) invalidate(ctx context.Context, token string) {
	if m.Redis == nil {
		return
	}
	if err := m.Redis.Del(ctx, sessionCachePrefix+token).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate session cache")
	}
}
