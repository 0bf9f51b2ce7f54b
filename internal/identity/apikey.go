package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cryptovault/internal/domain"
	"cryptovault/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt" // Secret hashing
	"gorm.io/gorm"
)

// APIKeyScheme prefixes every issued key
const APIKeyScheme = "cv_"

// ErrInvalidAPIKey covers malformed, unknown and mismatching keys alike
var ErrInvalidAPIKey = errors.New("invalid api key")

// IssueAPIKey creates a key for userID. The plaintext is returned once and
// never stored; only its bcrypt hash is kept.
func IssueAPIKey(ctx context.Context, db *gorm.DB, userID uuid.UUID) (string, *domain.APIKey, error) {
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12] // Public lookup prefix
	secret := utils.RandomHex(24)                                // Shown to the caller once
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}
	key := domain.APIKey{UserID: userID, Prefix: prefix, KeyHash: string(hash)}
	if err := db.WithContext(ctx).Create(&key).Error; err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}
	return APIKeyScheme + prefix + "_" + secret, &key, nil
}

// ParseAPIKey splits a raw key into its lookup prefix and secret
func ParseAPIKey(raw string) (prefix, secret string, ok bool) {
	rest, ok := strings.CutPrefix(raw, APIKeyScheme)
	if !ok {
		return "", "", false
	}
	prefix, secret, ok = strings.Cut(rest, "_")
	if !ok || prefix == "" || secret == "" {
		return "", "", false
	}
	return prefix, secret, true
}

// VerifyAPIKey returns the owner of raw and stamps the key's last use
func VerifyAPIKey(ctx context.Context, db *gorm.DB, raw string) (*domain.User, error) {
	prefix, secret, ok := ParseAPIKey(raw)
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	db = db.WithContext(ctx) // Bind the request context
	var key domain.APIKey    // Key row found by prefix
	if err := db.Where("prefix = ?", prefix).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)) != nil {
		return nil, ErrInvalidAPIKey
	}
	var user domain.User // Key owner
	if err := db.First(&user, "id = ?", key.UserID).Error; err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if err := db.Model(&key).UpdateColumn("last_used_at", time.Now()).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAPIKeys returns the user's keys, newest first
func ListAPIKeys(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]domain.APIKey, error) {
	var keys []domain.APIKey // Slice to hold keys
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&keys).Error
	return keys, err
}

// RevokeAPIKey deletes one of the user's keys. It returns
// gorm.ErrRecordNotFound when the user owns no such key.
func RevokeAPIKey(ctx context.Context, db *gorm.DB, userID, keyID uuid.UUID) error {
	res := db.WithContext(ctx).Where("id = ? AND user_id = ?", keyID, userID).Delete(&domain.APIKey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
