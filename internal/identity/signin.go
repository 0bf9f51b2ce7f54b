// Package identity resolves external identities (OAuth accounts, wallets,
// API keys) to marketplace users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptovault/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMissingEmail is returned when a provider profile has no email
	ErrMissingEmail = errors.New("identity provider returned no email")
	// ErrUserInactive is returned for deactivated accounts
	ErrUserInactive = errors.New("user is deactivated")
)

// Profile is what an identity provider tells us about the person signing in
type Profile struct {
	Email             string // Lowercased before lookup
	Name              string // Defaults to the email's local part
	AvatarURL         string // Profile picture URL
	Provider          string // domain.ProviderGoogle, ...
	ProviderAccountID string // Subject at the provider
}

// SignIn finds or creates the user owning p.Email and records the provider
// link. Concurrent first sign-ins for one email converge on a single row.
// created is true only for the call that inserted the user.
func SignIn(ctx context.Context, db *gorm.DB, p Profile) (user *domain.User, created bool, err error) {
	email := strings.ToLower(strings.TrimSpace(p.Email)) // Email is the identity anchor
	if email == "" {
		return nil, false, ErrMissingEmail
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	var u domain.User // Persisted user
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := domain.User{
			Email:     email,
			Name:      name,
			AvatarURL: p.AvatarURL,
			Role:      domain.RoleBuyer,
			KYCStatus: domain.KYCPending,
			IsActive:  true,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&candidate)
		if res.Error != nil {
			return fmt.Errorf("upsert user: %w", res.Error)
		}
		created = res.RowsAffected == 1 // Zero rows when the email already existed

		// Re-read: on conflict the candidate ID was never stored
		if err := tx.Where("email = ?", email).First(&u).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if !u.IsActive {
			return ErrUserInactive // Rolls back the transaction
		}
		if p.Provider == "" {
			return nil // No provider link to record
		}
		account := domain.AuthAccount{
			UserID:            u.ID,
			Provider:          p.Provider,
			ProviderAccountID: p.ProviderAccountID,
			Email:             email,
			Name:              name,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoNothing: true,
		}).Create(&account).Error
		if err != nil {
			return fmt.Errorf("link %s account: %w", p.Provider, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &u, created, nil
}
