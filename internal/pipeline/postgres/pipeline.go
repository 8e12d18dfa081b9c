package postgres

import (
	"context"
	"errors"
	"time"

	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	"github.com/deptfile/file-management/internal/pipeline"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileStoreRepository implements the pipeline.FileStore interface using GORM
type FileStoreRepository struct {
	db *gorm.DB
}

func NewFileStoreRepository(db *gorm.DB) pipeline.FileStore {
	return &FileStoreRepository{db: db}
}

func (r *FileStoreRepository) GetByID(ctx context.Context, id int64) (*filemodel.File, error) {
	var f filemodel.File
	err := r.db.WithContext(ctx).First(&f, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *FileStoreRepository) SetChecksum(ctx context.Context, id int64, checksum string) error {
	return r.db.WithContext(ctx).
		Model(&filemodel.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"checksum":   checksum,
			"updated_at": time.Now(),
		}).Error
}

func (r *FileStoreRepository) SetScanStatus(ctx context.Context, id int64, status filemodel.ScanStatus) error {
	return r.db.WithContext(ctx).
		Model(&filemodel.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scan_status": status,
			"updated_at":  time.Now(),
		}).Error
}

func (r *FileStoreRepository) PendingScans(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&filemodel.File{}).
		Where("scan_status = ?", filemodel.ScanStatusPending).
		Where("lifecycle = ?", filemodel.LifecycleLive).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Quarantine locks the row, moves the bytes via the callback, then flips the
// row to infected+trashed in the same transaction. A concurrent quarantine of
// the same file blocks on the lock and reports false once it sees the row
// already infected. Rows the user trashed before the verdict landed are still
// quarantined so infected bytes never linger at a restorable path; only
// purged rows are skipped.
func (r *FileStoreRepository) Quarantine(ctx context.Context, id int64, quarantinePath string, move func(f *filemodel.File) error) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f filemodel.File
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&f, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if f.Lifecycle == filemodel.LifecyclePurged || f.ScanStatus == filemodel.ScanStatusInfected {
			return nil
		}

		if err := move(&f); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{
			"scan_status": filemodel.ScanStatusInfected,
			"path":        quarantinePath,
			"updated_at":  now,
		}
		if f.Lifecycle == filemodel.LifecycleLive {
			updates["lifecycle"] = filemodel.LifecycleTrashed
			updates["trashed_at"] = now
		}
		if err := tx.Model(&filemodel.File{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		moved = true
		return nil
	})
	return moved, err
}
