package audit

import "time"

// Log is append-only. Rows are never updated or deleted; there is no
// soft-delete column on purpose.
type Log struct {
	ID         int64          `gorm:"primaryKey"`
	ActorID    *int64         `gorm:"column:actor_id;index"`
	Action     string         `gorm:"column:action;not null;index"`
	EntityType string         `gorm:"column:entity_type;not null;index"`
	EntityID   *int64         `gorm:"column:entity_id;index"`
	Meta       map[string]any `gorm:"column:meta;type:jsonb;serializer:json"`
	IP         string         `gorm:"column:ip"`
	UserAgent  string         `gorm:"column:user_agent"`
	RequestID  string         `gorm:"column:request_id"`
	CreatedAt  time.Time      `gorm:"column:created_at;default:now();index"`
}

func (Log) TableName() string {
	return "audit_logs"
}

// Common action names written by the services. Handlers never invent ad-hoc
// strings; new actions get a constant here.
const (
	ActionFileUploaded    = "file.uploaded"
	ActionFileDownloaded  = "file.downloaded"
	ActionFileTrashed     = "file.trashed"
	ActionFileRestored    = "file.restored"
	ActionFilePurged      = "file.purged"
	ActionFileQuarantined = "file.quarantined"
	ActionFileMoved       = "file.moved"
	ActionFileRenamed     = "file.renamed"
	ActionFileVersioned   = "file.versioned"

	ActionFolderCreated  = "folder.created"
	ActionFolderMoved    = "folder.moved"
	ActionFolderTrashed  = "folder.trashed"
	ActionFolderRestored = "folder.restored"
	ActionFolderPurged   = "folder.purged"
	ActionFolderRenamed  = "folder.renamed"

	ActionPermissionGranted = "permission.granted"
	ActionPermissionRevoked = "permission.revoked"
	ActionShareLinkCreated  = "share_link.created"
	ActionShareLinkRevoked  = "share_link.revoked"
	ActionShareLinkAccessed = "share_link.accessed"

	ActionDepartmentCreated  = "department.created"
	ActionDepartmentUpdated  = "department.updated"
	ActionDepartmentDisabled = "department.disabled"

	ActionEmployeeCreated       = "employee.created"
	ActionEmployeeUpdated       = "employee.updated"
	ActionEmployeeStatusChanged = "employee.status_changed"

	ActionUserRegistered = "user.registered"
	ActionUserApproved   = "user.approved"
	ActionUserRejected   = "user.rejected"
	ActionUserBlocked    = "user.blocked"
	ActionUserLoggedIn   = "user.logged_in"
)
