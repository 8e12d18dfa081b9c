package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/deptfile/file-management/internal/core/datamodel/permission"
	"github.com/deptfile/file-management/internal/core/datamodel/sharelink"
	"github.com/deptfile/file-management/internal/sharing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SharingRepository implements the sharing.Repository interface using GORM
type SharingRepository struct {
	db *gorm.DB
}

func NewSharingRepository(db *gorm.DB) sharing.Repository {
	return &SharingRepository{db: db}
}

func (r *SharingRepository) UpsertFilePermission(ctx context.Context, p *permission.FilePermission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "file_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"can_view", "can_download", "can_edit", "can_delete", "created_by", "updated_at",
			}),
		}).
		Create(p).Error
}

func (r *SharingRepository) DeleteFilePermission(ctx context.Context, fileID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("file_id = ? AND user_id = ?", fileID, userID).
		Delete(&permission.FilePermission{}).Error
}

func (r *SharingRepository) UpsertFolderPermission(ctx context.Context, p *permission.FolderPermission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "folder_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"can_view", "can_upload", "can_edit", "can_delete", "created_by", "updated_at",
			}),
		}).
		Create(p).Error
}

func (r *SharingRepository) DeleteFolderPermission(ctx context.Context, folderID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("folder_id = ? AND user_id = ?", folderID, userID).
		Delete(&permission.FolderPermission{}).Error
}

func (r *SharingRepository) CreateShareLink(ctx context.Context, link *sharelink.ShareLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *SharingRepository) ShareLinkByToken(ctx context.Context, token string) (*sharelink.ShareLink, error) {
	var link sharelink.ShareLink
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *SharingRepository) ShareLinkByPublicID(ctx context.Context, publicID string) (*sharelink.ShareLink, error) {
	var link sharelink.ShareLink
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *SharingRepository) ListShareLinks(ctx context.Context, fileID int64) ([]*sharelink.ShareLink, error) {
	var links []*sharelink.ShareLink
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

func (r *SharingRepository) RevokeShareLink(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sharelink.ShareLink{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{
			"revoked_at": at,
			"updated_at": at,
		}).Error
}

// ConsumeDownload races are settled by the database: the guarded UPDATE only
// lands while the link is live, so over-quota downloads lose cleanly.
func (r *SharingRepository) ConsumeDownload(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&sharelink.ShareLink{}).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("max_downloads IS NULL OR download_count < max_downloads").
		Updates(map[string]any{
			"download_count": gorm.Expr("download_count + 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
