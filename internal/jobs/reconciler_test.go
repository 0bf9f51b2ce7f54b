package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cryptovault/internal/db"
	"cryptovault/internal/domain"
	"cryptovault/internal/storage"
	"cryptovault/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedDataset(t *testing.T, gdb *gorm.DB, hash string) (domain.User, domain.User, domain.Dataset) {
	seller := domain.User{Email: "seller@example.com", Name: "Seller", Role: domain.RoleSeller, KYCStatus: domain.KYCPending, IsActive: true}
	buyer := domain.User{Email: "buyer@example.com", Name: "Buyer", Role: domain.RoleBuyer, KYCStatus: domain.KYCPending, IsActive: true}
	require.NoError(t, gdb.Create(&seller).Error)
	require.NoError(t, gdb.Create(&buyer).Error)
	ds := domain.Dataset{
		SellerID:   seller.ID,
		Title:      "Weather",
		FileHash:   hash,
		StorageKey: storage.KeyFor(hash),
		Price:      decimal.RequireFromString("2.5"),
		Status:     domain.DatasetActive,
	}
	require.NoError(t, gdb.Create(&ds).Error)
	return seller, buyer, ds
}

func TestRunOnceFixesPurchaseCountDrift(t *testing.T) {
	gdb := setupTestDB(t)
	seller, buyer, ds := seedDataset(t, gdb, strings.Repeat("a", 64))
	for _, status := range []string{domain.TxCompleted, domain.TxCompleted, domain.TxFailed} {
		require.NoError(t, gdb.Create(&domain.Transaction{
			BuyerID:   buyer.ID,
			SellerID:  seller.ID,
			DatasetID: ds.ID,
			Amount:    ds.Price,
			TxHash:    utils.RandomTxHash(),
			Status:    status,
		}).Error)
	}
	// Injected drift
	require.NoError(t, gdb.Model(&ds).UpdateColumn("purchase_count", 7).Error)

	r := NewReconciler(gdb, nil)
	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.DatasetsFixed)

	var got domain.Dataset
	require.NoError(t, gdb.First(&got, "id = ?", ds.ID).Error)
	assert.Equal(t, int64(2), got.PurchaseCount)

	// Second pass has nothing to do
	report, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.DatasetsFixed)
}

func TestRunOnceSweepsOrphanBlobs(t *testing.T) {
	gdb := setupTestDB(t)
	store, err := storage.NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	kept, err := store.Put(context.Background(), strings.NewReader("referenced"))
	require.NoError(t, err)
	orphan, err := store.Put(context.Background(), strings.NewReader("orphan"))
	require.NoError(t, err)
	seedDataset(t, gdb, kept.Hash)

	r := NewReconciler(gdb, store)

	// Fresh blobs are inside the grace window
	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.BlobsRemoved)

	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	report, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.BlobsRemoved)

	hashes, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{kept.Hash}, hashes)
	_, err = store.Open(orphan.Hash)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := NewReconciler(setupTestDB(t), nil)
	assert.Error(t, r.Start("not a schedule"))
}

func TestStartAndStop(t *testing.T) {
	r := NewReconciler(setupTestDB(t), nil)
	require.NoError(t, r.Start("@every 1h"))
	r.Stop()
}
