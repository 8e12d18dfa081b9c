package file

import "time"

type Visibility string

const (
	VisibilityPrivate    Visibility = "private"
	VisibilityDepartment Visibility = "department"
	VisibilityShared     Visibility = "shared"
)

type Lifecycle string

const (
	LifecycleLive    Lifecycle = "live"
	LifecycleTrashed Lifecycle = "trashed"
	LifecyclePurged  Lifecycle = "purged"
)

type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "pending"
	ScanStatusClean    ScanStatus = "clean"
	ScanStatusInfected ScanStatus = "infected"
)

// File rows are created as soon as the bytes are durably stored. Checksum and
// ScanStatus are filled in asynchronously by the safety pipeline; the file is
// visible and downloadable before either completes.
type File struct {
	ID           int64      `gorm:"primaryKey"`
	PublicID     string     `gorm:"column:public_id;uniqueIndex;not null"`
	FolderID     int64      `gorm:"column:folder_id;not null;index"`
	OwnerUserID  int64      `gorm:"column:owner_user_id;not null;index"`
	DepartmentID *int64     `gorm:"column:department_id;index"`
	Name         string     `gorm:"column:name;not null"`
	OriginalName string     `gorm:"column:original_name"`
	MimeType     string     `gorm:"column:mime_type"`
	Size         int64      `gorm:"column:size;not null"`
	Checksum     *string    `gorm:"column:checksum"`
	Disk         string     `gorm:"column:disk;not null"`
	Path         string     `gorm:"column:path;not null"`
	Visibility   Visibility `gorm:"column:visibility;default:'private'"`
	ScanStatus   ScanStatus `gorm:"column:scan_status;default:'pending'"`
	Lifecycle    Lifecycle  `gorm:"column:lifecycle;default:'live';index"`
	TrashedAt    *time.Time `gorm:"column:trashed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;default:now()"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) IsDeleted() bool {
	return f.Lifecycle != LifecycleLive
}

// Version is an immutable snapshot of historical file content. Rows are
// append-only; nothing updates them after creation.
type Version struct {
	ID        int64     `gorm:"primaryKey"`
	FileID    int64     `gorm:"column:file_id;not null;uniqueIndex:idx_file_version"`
	VersionNo int       `gorm:"column:version_no;not null;uniqueIndex:idx_file_version"`
	Disk      string    `gorm:"column:disk;not null"`
	Path      string    `gorm:"column:path;not null"`
	Checksum  *string   `gorm:"column:checksum"`
	Size      int64     `gorm:"column:size;not null"`
	CreatedBy int64     `gorm:"column:created_by;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Version) TableName() string {
	return "file_versions"
}
