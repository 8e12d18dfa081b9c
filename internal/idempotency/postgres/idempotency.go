package postgres

import (
	"context"
	"errors"
	"time"

	idem "github.com/deptfile/file-management/internal/core/datamodel/idempotency"
	"github.com/deptfile/file-management/internal/idempotency"
	"gorm.io/gorm"
)

// IdempotencyRepository implements the idempotency.Repository interface using GORM
type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) idempotency.Repository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Find(ctx context.Context, actorID int64, scope, key string) (*idem.Record, error) {
	var record idem.Record
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND scope = ? AND idempotency_key = ?", actorID, scope, key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *IdempotencyRepository) Create(ctx context.Context, record *idem.Record) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return idempotency.ErrDuplicateRecord
	}
	return err
}

func (r *IdempotencyRepository) MarkCompleted(ctx context.Context, id int64, responseCode int, responseBody string) error {
	return r.db.WithContext(ctx).Model(&idem.Record{}).
		Where("id = ? AND status = ?", id, idem.StatusInProgress).
		Updates(map[string]interface{}{
			"status":        idem.StatusCompleted,
			"response_code": responseCode,
			"response_body": responseBody,
			"updated_at":    time.Now(),
		}).Error
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, id int64, responseCode int) error {
	return r.db.WithContext(ctx).Model(&idem.Record{}).
		Where("id = ? AND status = ?", id, idem.StatusInProgress).
		Updates(map[string]interface{}{
			"status":        idem.StatusFailed,
			"response_code": responseCode,
			"updated_at":    time.Now(),
		}).Error
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&idem.Record{})
	return result.RowsAffected, result.Error
}
