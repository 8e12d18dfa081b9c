package postgres

import (
	"context"
	"errors"

	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/core/datamodel/permission"
	"gorm.io/gorm"
)

// AuthzRepository implements the authz reader interfaces using GORM
type AuthzRepository struct {
	db *gorm.DB
}

func NewAuthzRepository(db *gorm.DB) *AuthzRepository {
	return &AuthzRepository{db: db}
}

func (r *AuthzRepository) FolderByID(ctx context.Context, id int64) (*foldermodel.Folder, error) {
	var fo foldermodel.Folder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&fo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fo, nil
}

func (r *AuthzRepository) FolderByPublicID(ctx context.Context, publicID string) (*foldermodel.Folder, error) {
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

func (r *AuthzRepository) FileByID(ctx context.Context, id int64) (*filemodel.File, error) {
	var f filemodel.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *AuthzRepository) FileByPublicID(ctx context.Context, publicID string) (*filemodel.File, error) {
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

func (r *AuthzRepository) FilePermission(ctx context.Context, fileID, userID int64) (*permission.FilePermission, error) {
	var p permission.FilePermission
	err := r.db.WithContext(ctx).
		Where("file_id = ? AND user_id = ?", fileID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *AuthzRepository) FolderPermissions(ctx context.Context, folderIDs []int64, userID int64) ([]*permission.FolderPermission, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	var perms []*permission.FolderPermission
	err := r.db.WithContext(ctx).
		Where("folder_id IN ? AND user_id = ?", folderIDs, userID).
		Find(&perms).Error
	return perms, err
}

func (r *AuthzRepository) FileHasOverrides(ctx context.Context, fileID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&permission.FilePermission{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	return count > 0, err
}

func (r *AuthzRepository) FolderSetHasOverrides(ctx context.Context, folderIDs []int64) (bool, error) {
	if len(folderIDs) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&permission.FolderPermission{}).
		Where("folder_id IN ?", folderIDs).
		Count(&count).Error
	return count > 0, err
}
