package identity

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cryptovault/internal/db"
	"cryptovault/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func googleProfile(email string) Profile {
	return Profile{
		Email:             email,
		Name:              "Ada Lovelace",
		Provider:          domain.ProviderGoogle,
		ProviderAccountID: "sub-" + email,
	}
}

func TestSignInCreatesUserOnce(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()

	first, created, err := SignIn(ctx, gdb, googleProfile("Ada@Example.com"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ada@example.com", first.Email)
	assert.Equal(t, domain.RoleBuyer, first.Role)

	again, created, err := SignIn(ctx, gdb, googleProfile("ada@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	var accounts int64
	gdb.Model(&domain.AuthAccount{}).Where("user_id = ?", first.ID).Count(&accounts)
	assert.Equal(t, int64(1), accounts)
}

func TestSignInRejectsMissingEmail(t *testing.T) {
	gdb := setupTestDB(t)
	_, _, err := SignIn(context.Background(), gdb, Profile{Name: "nobody", Provider: domain.ProviderGoogle})
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestSignInDefaultsNameToEmailLocalPart(t *testing.T) {
	gdb := setupTestDB(t)
	u, _, err := SignIn(context.Background(), gdb, Profile{Email: "grace@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "grace", u.Name)
}

func TestConcurrentSignInsConverge(t *testing.T) {
	gdb := setupTestDB(t)
	const n = 8
	ids := make([]uuid.UUID, n)
	created := make([]bool, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, c, err := SignIn(context.Background(), gdb, googleProfile("race@example.com"))
			errs[i], created[i] = err, c
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	creators := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			creators++
		}
	}
	assert.Equal(t, 1, creators)

	var users, accounts int64
	gdb.Model(&domain.User{}).Count(&users)
	gdb.Model(&domain.AuthAccount{}).Count(&accounts)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), accounts)
}

func TestSignInInactiveUser(t *testing.T) {
	gdb := setupTestDB(t)
	u, _, err := SignIn(context.Background(), gdb, googleProfile("gone@example.com"))
	require.NoError(t, err)
	require.NoError(t, gdb.Model(u).Update("is_active", false).Error)

	_, _, err = SignIn(context.Background(), gdb, googleProfile("gone@example.com"))
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestNormalizeWallet(t *testing.T) {
	addr, err := NormalizeWallet(" 0xABCdef ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef", addr)

	for _, bad := range []string{"", "0x", "abcdef", "0xZZ", "0x" + strings.Repeat("a", 65)} {
		_, err := NormalizeWallet(bad)
		assert.ErrorIs(t, err, ErrInvalidWallet, bad)
	}
}

func TestLinkWallet(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()
	alice, _, err := SignIn(ctx, gdb, googleProfile("alice@example.com"))
	require.NoError(t, err)
	bob, _, err := SignIn(ctx, gdb, googleProfile("bob@example.com"))
	require.NoError(t, err)

	linked, err := LinkWallet(ctx, gdb, alice.ID, "0xA11CE")
	require.NoError(t, err)
	assert.Equal(t, "0xa11ce", *linked.WalletAddress)

	// Relinking the same address is idempotent
	_, err = LinkWallet(ctx, gdb, alice.ID, "0xa11ce")
	require.NoError(t, err)

	_, err = LinkWallet(ctx, gdb, bob.ID, "0xa11ce")
	assert.ErrorIs(t, err, ErrWalletTaken)

	_, err = LinkWallet(ctx, gdb, uuid.New(), "0xb0b")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var account domain.AuthAccount
	require.NoError(t, gdb.Where("user_id = ? AND provider = ?", alice.ID, domain.ProviderWalletSui).First(&account).Error)
	assert.Equal(t, "0xa11ce", account.ProviderAccountID)

	// A new address replaces the old one on the same account row
	_, err = LinkWallet(ctx, gdb, alice.ID, "0xbeef")
	require.NoError(t, err)
	var accounts []domain.AuthAccount
	require.NoError(t, gdb.Where("user_id = ? AND provider = ?", alice.ID, domain.ProviderWalletSui).Find(&accounts).Error)
	require.Len(t, accounts, 1)
	assert.Equal(t, "0xbeef", accounts[0].ProviderAccountID)
}

func TestAPIKeyLifecycle(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()
	u, _, err := SignIn(ctx, gdb, googleProfile("keys@example.com"))
	require.NoError(t, err)

	raw, key, err := IssueAPIKey(ctx, gdb, u.ID)
	require.NoError(t, err)
	assert.Contains(t, raw, APIKeyScheme+key.Prefix+"_")
	assert.NotContains(t, key.KeyHash, raw)

	owner, err := VerifyAPIKey(ctx, gdb, raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)

	var stored domain.APIKey
	require.NoError(t, gdb.First(&stored, "id = ?", key.ID).Error)
	assert.NotNil(t, stored.LastUsedAt)

	_, err = VerifyAPIKey(ctx, gdb, raw+"x")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	_, err = VerifyAPIKey(ctx, gdb, "cv_unknown_secret")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	_, err = VerifyAPIKey(ctx, gdb, "garbage")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	keys, err := ListAPIKeys(ctx, gdb, u.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	assert.ErrorIs(t, RevokeAPIKey(ctx, gdb, uuid.New(), key.ID), gorm.ErrRecordNotFound)
	require.NoError(t, RevokeAPIKey(ctx, gdb, u.ID, key.ID))
	_, err = VerifyAPIKey(ctx, gdb, raw)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestParseAPIKey(t *testing.T) {
	prefix, secret, ok := ParseAPIKey("cv_abc_def")
	assert.True(t, ok)
	assert.Equal(t, "abc", prefix)
	assert.Equal(t, "def", secret)

	for _, bad := range []string{"", "cv_", "cv_abc", "cv__def", "cv_abc_", "xx_abc_def"} {
		_, _, ok := ParseAPIKey(bad)
		assert.False(t, ok, bad)
	}
}
