package postgres

import (
	"context"
	"errors"
	"time"

	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/folder"
	"gorm.io/gorm"
)

// FolderRepository implements the folder.Repository interface using GORM
type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) folder.Repository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, fo *foldermodel.Folder) error {
	return r.db.WithContext(ctx).Create(fo).Error
}

func (r *FolderRepository) ByID(ctx context.Context, id int64) (*foldermodel.Folder, error) {
	var fo foldermodel.Folder
	err := r.db.WithContext(ctx).First(&fo, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fo, nil
}

func (r *FolderRepository) ByPublicID(ctx context.Context, publicID string) (*foldermodel.Folder, error) {
	var fo foldermodel.Folder
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&fo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fo, nil
}

func (r *FolderRepository) Children(ctx context.Context, parentID int64) ([]*foldermodel.Folder, error) {
	var folders []*foldermodel.Folder
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("name ASC").
		Find(&folders).Error
	return folders, err
}

func (r *FolderRepository) Roots(ctx context.Context, ownerUserID int64, departmentID *int64) ([]*foldermodel.Folder, error) {
	q := r.db.WithContext(ctx).Where("parent_id IS NULL")
	if departmentID != nil {
		q = q.Where("owner_user_id = ? OR department_id = ?", ownerUserID, *departmentID)
	} else {
		q = q.Where("owner_user_id = ?", ownerUserID)
	}

	var folders []*foldermodel.Folder
	err := q.Order("name ASC").Find(&folders).Error
	return folders, err
}

func (r *FolderRepository) Update(ctx context.Context, fo *foldermodel.Folder) error {
	return r.db.WithContext(ctx).Save(fo).Error
}

func (r *FolderRepository) SetLifecycle(ctx context.Context, folderIDs []int64, lc foldermodel.Lifecycle, at *time.Time) error {
	if len(folderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&foldermodel.Folder{}).
		Where("id IN ?", folderIDs).
		Updates(map[string]any{
			"lifecycle":  lc,
			"trashed_at": at,
			"updated_at": time.Now(),
		}).Error
}

func (r *FolderRepository) SetFileLifecycle(ctx context.Context, folderIDs []int64, lc filemodel.Lifecycle, at *time.Time) error {
	if len(folderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&filemodel.File{}).
		Where("folder_id IN ?", folderIDs).
		Where("lifecycle <> ?", filemodel.LifecyclePurged).
		Updates(map[string]any{
			"lifecycle":  lc,
			"trashed_at": at,
			"updated_at": time.Now(),
		}).Error
}

func (r *FolderRepository) FilesInFolders(ctx context.Context, folderIDs []int64) ([]*filemodel.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	var files []*filemodel.File
	err := r.db.WithContext(ctx).
		Where("folder_id IN ?", folderIDs).
		Order("name ASC").
		Find(&files).Error
	return files, err
}
