// Package jobs holds background maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptovault/internal/domain"
	"cryptovault/internal/storage"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultBlobGrace protects blobs written moments ago whose dataset row is
// still being inserted.
const DefaultBlobGrace = 15 * time.Minute

// Report summarizes one reconciliation pass
type Report struct {
	DatasetsFixed int64 `json:"datasetsFixed"`
	BlobsRemoved  int   `json:"blobsRemoved"`
}

// Reconciler repairs derived state: purchase counters drift back to the
// transactions table and unreferenced blobs are removed.
type Reconciler struct {
	db    *gorm.DB
	store storage.BlobStore
	grace time.Duration
	now   func() time.Time
	cron  *cron.Cron
	mu    sync.Mutex // one pass at a time
}

// NewReconciler returns a reconciler over db and store
func NewReconciler(db *gorm.DB, store storage.BlobStore) *Reconciler {
	return &Reconciler{
		db:    db,
		store: store,
		grace: DefaultBlobGrace,
		now:   time.Now,
		cron:  cron.New(),
	}
}

// RunOnce performs a full pass
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	r.mu.Lock() // One pass at a time
	defer r.mu.Unlock()

	var report Report // Accumulated results
	fixed, err := r.fixPurchaseCounts(ctx)
	if err != nil {
		return report, fmt.Errorf("fix purchase counts: %w", err)
	}
	report.DatasetsFixed = fixed // Rows whose counter drifted

	removed, err := r.sweepBlobs(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep blobs: %w", err)
	}
	report.BlobsRemoved = removed // Orphans deleted from disk
	return report, nil
}

func (r *Reconciler) fixPurchaseCounts(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx) // Bind the caller's context
	completed := db.Model(&domain.Transaction{}).
		Select("COUNT(*)").
		Where("transactions.dataset_id = datasets.id AND transactions.status = ?", domain.TxCompleted)
	res := db.Model(&domain.Dataset{}).
		Where("purchase_count <> (?)", completed).
		UpdateColumn("purchase_count", gorm.Expr("(?)", completed))
	return res.RowsAffected, res.Error
}

func (r *Reconciler) sweepBlobs(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil // Nothing to sweep
	}
	hashes, err := r.store.List()
	if err != nil {
		return 0, err
	}
	if len(hashes) == 0 {
		return 0, nil
	}
	var referenced []string // Hashes still used by a dataset
	if err := r.db.WithContext(ctx).Model(&domain.Dataset{}).
		Where("file_hash IN ?", hashes).
		Distinct().Pluck("file_hash", &referenced).Error; err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(referenced))
	for _, h := range referenced {
		keep[h] = struct{}{}
	}

	cutoff := r.now().Add(-r.grace) // Newer blobs may belong to an in-flight upload
	removed := 0                    // Count of deleted blobs
	for _, h := range hashes {
		if _, ok := keep[h]; ok {
			continue
		}
		written, err := r.store.ModTime(h)
		if err != nil || written.After(cutoff) {
			continue
		}
		if err := r.store.Delete(h); err != nil {
			logrus.WithFields(logrus.Fields{
				"file_hash": h,
				"error":     err.Error(),
			}).Warn("Failed to remove orphan blob")
			continue
		}
		removed++ // Count the removal
	}
	return removed, nil
}

// Start schedules RunOnce on spec, e.g. "@every 10m"
func (r *Reconciler) Start(spec string) error {
	err := r.cron.AddFunc(spec, func() {
		report, err := r.RunOnce(context.Background())
		if err != nil {
			logrus.WithField("error", err.Error()).Error("Reconciliation failed")
			return
		}
		logrus.WithFields(logrus.Fields{
			"datasets_fixed": report.DatasetsFixed,
			"blobs_removed":  report.BlobsRemoved,
		}).Info("Reconciliation completed")
	})
	if err != nil {
		return fmt.Errorf("schedule reconciler %q: %w", spec, err)
	}
	r.cron.Start() // Runs jobs on its own goroutine
	return nil
}

// Stop halts the schedule; a running pass finishes on its own
func (r *Reconciler) Stop() {
	r.cron.Stop() // Stop scheduling
}
