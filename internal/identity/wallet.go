package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cryptovault/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidWallet is returned for addresses that are not 0x-prefixed hex
	ErrInvalidWallet = errors.New("invalid wallet address")
	// ErrWalletTaken is returned when another user already linked the address
	ErrWalletTaken = errors.New("wallet address already linked to another user")
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// NormalizeWallet validates a Sui address and lowercases it
func NormalizeWallet(address string) (string, error) {
	address = strings.TrimSpace(address) // Tolerate pasted whitespace
	if !walletPattern.MatchString(address) {
		return "", ErrInvalidWallet
	}
	return strings.ToLower(address), nil
}

// LinkWallet attaches address to the user and records a WALLET_SUI account.
// Relinking replaces the previous address.
func LinkWallet(ctx context.Context, db *gorm.DB, userID uuid.UUID, address string) (*domain.User, error) {
	address, err := NormalizeWallet(address)
	if err != nil {
		return nil, err
	}
	var user domain.User // User being linked
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		var owners int64 // Other users holding the address
		if err := tx.Model(&domain.User{}).
			Where("wallet_address = ? AND id <> ?", address, userID).
			Count(&owners).Error; err != nil {
			return err
		}
		if owners > 0 {
			return ErrWalletTaken // Address belongs to someone else
		}
		if err := tx.Model(&user).Update("wallet_address", address).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrWalletTaken
			}
			return fmt.Errorf("set wallet address: %w", err)
		}
		account := domain.AuthAccount{
			UserID:            userID,
			Provider:          domain.ProviderWalletSui,
			ProviderAccountID: address,
			Email:             user.Email,
			Name:              user.Name,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider_account_id"}),
		}).Create(&account).Error
	})
	if err != nil {
		return nil, err
	}
	user.WalletAddress = &address // Reflect the update in the returned struct
	return &user, nil
}
