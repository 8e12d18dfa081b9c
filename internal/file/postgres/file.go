package postgres

import (
	"context"
	"errors"
	"time"

	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	"github.com/deptfile/file-management/internal/file"
	"gorm.io/gorm"
)

// FileRepository implements the file.Repository interface using GORM
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) file.Repository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, f *filemodel.File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *FileRepository) ByID(ctx context.Context, id int64) (*filemodel.File, error) {
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

func (r *FileRepository) ByPublicID(ctx context.Context, publicID string) (*filemodel.File, error) {
	var f filemodel.File
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *FileRepository) Update(ctx context.Context, f *filemodel.File) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *FileRepository) SetLifecycle(ctx context.Context, id int64, lc filemodel.Lifecycle, at *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&filemodel.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"lifecycle":  lc,
			"trashed_at": at,
			"updated_at": time.Now(),
		}).Error
}

func (r *FileRepository) CreateVersion(ctx context.Context, v *filemodel.Version) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *FileRepository) Versions(ctx context.Context, fileID int64) ([]*filemodel.Version, error) {
	var versions []*filemodel.Version
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("version_no DESC").
		Find(&versions).Error
	return versions, err
}

func (r *FileRepository) Version(ctx context.Context, fileID int64, versionNo int) (*filemodel.Version, error) {
	var v filemodel.Version
	err := r.db.WithContext(ctx).
		Where("file_id = ? AND version_no = ?", fileID, versionNo).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}
