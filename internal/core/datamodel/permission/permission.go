package permission

import "time"

// FilePermission is a per-user override on a single file. The presence of any
// override row on a resource suspends department-wide implicit access to it;
// only explicit grants apply from then on.
type FilePermission struct {
	ID          int64     `gorm:"primaryKey"`
	FileID      int64     `gorm:"column:file_id;not null;uniqueIndex:idx_file_user"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex:idx_file_user"`
	CanView     bool      `gorm:"column:can_view;default:false"`
	CanDownload bool      `gorm:"column:can_download;default:false"`
	CanEdit     bool      `gorm:"column:can_edit;default:false"`
	CanDelete   bool      `gorm:"column:can_delete;default:false"`
	CreatedBy   int64     `gorm:"column:created_by;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;default:now()"`
}

func (FilePermission) TableName() string {
	return "file_permissions"
}

type FolderPermission struct {
	ID        int64     `gorm:"primaryKey"`
	FolderID  int64     `gorm:"column:folder_id;not null;uniqueIndex:idx_folder_user"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_folder_user"`
	CanView   bool      `gorm:"column:can_view;default:false"`
	CanUpload bool      `gorm:"column:can_upload;default:false"`
	CanEdit   bool      `gorm:"column:can_edit;default:false"`
	CanDelete bool      `gorm:"column:can_delete;default:false"`
	CreatedBy int64     `gorm:"column:created_by;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (FolderPermission) TableName() string {
	return "folder_permissions"
}

// Capability names the override flag an authorization check consults.
type Capability string

const (
	CapabilityView     Capability = "view"
	CapabilityDownload Capability = "download"
	CapabilityUpload   Capability = "upload"
	CapabilityEdit     Capability = "edit"
	CapabilityDelete   Capability = "delete"
)

func (p *FilePermission) Allows(cap Capability) bool {
	switch cap {
	case CapabilityView:
		return p.CanView
	case CapabilityDownload:
		return p.CanDownload
	case CapabilityEdit:
		return p.CanEdit
	case CapabilityDelete:
		return p.CanDelete
	default:
		return false
	}
}

func (p *FolderPermission) Allows(cap Capability) bool {
	switch cap {
	case CapabilityView:
		return p.CanView
	case CapabilityUpload:
		return p.CanUpload
	case CapabilityEdit:
		return p.CanEdit
	case CapabilityDelete:
		return p.CanDelete
	default:
		return false
	}
}
