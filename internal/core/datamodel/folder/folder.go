package folder

import (
	"errors"
	"time"
)

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

var ErrScopeInvalid = errors.New("folder must be scoped to exactly one of owner or department")

// Folder is a node in the self-referential tree. ParentID nil means root.
// Exactly one of OwnerUserID and DepartmentID must be set.
type Folder struct {
	ID           int64      `gorm:"primaryKey"`
	PublicID     string     `gorm:"column:public_id;uniqueIndex;not null"`
	ParentID     *int64     `gorm:"column:parent_id;index"`
	Name         string     `gorm:"column:name;not null"`
	OwnerUserID  *int64     `gorm:"column:owner_user_id;index"`
	DepartmentID *int64     `gorm:"column:department_id;index"`
	Visibility   Visibility `gorm:"column:visibility;default:'private'"`
	Lifecycle    Lifecycle  `gorm:"column:lifecycle;default:'live';index"`
	TrashedAt    *time.Time `gorm:"column:trashed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Folder) TableName() string {
	return "folders"
}

// ValidateScope enforces the owner XOR department invariant.
func (f *Folder) ValidateScope() error {
	if (f.OwnerUserID == nil) == (f.DepartmentID == nil) {
		return ErrScopeInvalid
	}
	return nil
}

func (f *Folder) IsDeleted() bool {
	return f.Lifecycle != LifecycleLive
}
