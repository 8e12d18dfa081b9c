// Package authz resolves (actor, resource, action) into allow/deny decisions.
//
// Precedence, most specific first: deleted resources are invisible; explicit
// per-user grants on the resource win; grants on any ancestor folder win next;
// then the actor must hold the coarse role permission for the action at all;
// then ownership; then department membership, unless the resource sits behind
// the override gate (any fine-grained permission row on it or its ancestry
// suspends department-wide implicit access). Anything unmatched is a deny.
//
// The engine never returns errors. Lookup failures are logged and resolve to
// deny. The SuperAdmin short-circuit is evaluated by callers, above this
// engine.
package authz

import (
	"context"

	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/core/datamodel/permission"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

type Action string

const (
	ActionView     Action = "view"
	ActionDownload Action = "download"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionRestore  Action = "restore"
	ActionShare    Action = "share"
	ActionCreate   Action = "create"
	ActionUpload   Action = "upload"
)

// Coarse role permission names. These gate actions independently of any
// resource-specific override.
const (
	PermFilesView     = "files.view"
	PermFilesDownload = "files.download"
	PermFilesUpload   = "files.upload"
	PermFilesUpdate   = "files.update"
	PermFilesDelete   = "files.delete"
	PermFilesRestore  = "files.restore"

	PermFoldersView    = "folders.view"
	PermFoldersCreate  = "folders.create"
	PermFoldersUpdate  = "folders.update"
	PermFoldersDelete  = "folders.delete"
	PermFoldersRestore = "folders.restore"

	PermShareManage = "share.manage"

	// Administrative permissions checked by the permission middleware, not by
	// the resource engine.
	PermUsersManage       = "users.manage"
	PermDepartmentsManage = "departments.manage"
	PermAuditView         = "audit.view"
)

// Actor is the request-scoped identity the engine decides for. Perms is
// populated once per request from the role assignment store.
type Actor struct {
	UserID       int64
	DepartmentID *int64
	Perms        usermodel.PermissionSet
	// SuperAdmin is consulted by the services, not the engine; it bypasses
	// every check except resource existence.
	SuperAdmin bool
}

// FolderReader loads folder rows for the ancestor walk. A missing folder is
// (nil, nil).
type FolderReader interface {
	FolderByID(ctx context.Context, id int64) (*foldermodel.Folder, error)
}

// PermissionReader exposes the override rows the engine consults. A missing
// file permission is (nil, nil).
type PermissionReader interface {
	FilePermission(ctx context.Context, fileID, userID int64) (*permission.FilePermission, error)
	FolderPermissions(ctx context.Context, folderIDs []int64, userID int64) ([]*permission.FolderPermission, error)
	FileHasOverrides(ctx context.Context, fileID int64) (bool, error)
	FolderSetHasOverrides(ctx context.Context, folderIDs []int64) (bool, error)
}
