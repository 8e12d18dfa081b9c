package authz

import (
	"context"
	"log/slog"

	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/core/datamodel/permission"
)

type Engine struct {
	folders FolderReader
	perms   PermissionReader
	logger  *slog.Logger
}

func NewEngine(folders FolderReader, perms PermissionReader, logger *slog.Logger) *Engine {
	return &Engine{folders: folders, perms: perms, logger: logger}
}

// CanFile decides action on a file for the given actor.
func (e *Engine) CanFile(ctx context.Context, actor Actor, f *filemodel.File, action Action) bool {
	if f == nil {
		return false
	}

	switch action {
	case ActionView:
		return e.fileCheck(ctx, actor, f, permission.CapabilityView, PermFilesView, false)
	case ActionDownload:
		// download never grants more visibility than view does
		return e.CanFile(ctx, actor, f, ActionView) &&
			e.fileCheck(ctx, actor, f, permission.CapabilityDownload, PermFilesDownload, false)
	case ActionUpdate:
		return e.fileCheck(ctx, actor, f, permission.CapabilityEdit, PermFilesUpdate, false)
	case ActionDelete:
		return e.fileCheck(ctx, actor, f, permission.CapabilityDelete, PermFilesDelete, false)
	case ActionRestore:
		// restore is gated as if performing a delete, evaluated on the
		// trashed row as though it were live
		return actor.Perms.Has(PermFilesRestore) &&
			e.fileCheck(ctx, actor, f, permission.CapabilityDelete, PermFilesDelete, true)
	case ActionShare:
		return e.canShareFile(ctx, actor, f)
	default:
		return false
	}
}

// CanFolder decides action on an existing folder.
func (e *Engine) CanFolder(ctx context.Context, actor Actor, fo *foldermodel.Folder, action Action) bool {
	if fo == nil {
		return false
	}

	switch action {
	case ActionView:
		return e.folderCheck(ctx, actor, fo, permission.CapabilityView, PermFoldersView, false)
	case ActionUpdate:
		return e.folderCheck(ctx, actor, fo, permission.CapabilityEdit, PermFoldersUpdate, false)
	case ActionDelete:
		return e.folderCheck(ctx, actor, fo, permission.CapabilityDelete, PermFoldersDelete, false)
	case ActionRestore:
		return actor.Perms.Has(PermFoldersRestore) &&
			e.folderCheck(ctx, actor, fo, permission.CapabilityDelete, PermFoldersDelete, true)
	case ActionUpload:
		return e.folderCheck(ctx, actor, fo, permission.CapabilityUpload, PermFilesUpload, false)
	case ActionShare:
		return e.canShareFolder(ctx, actor, fo)
	default:
		return false
	}
}

// CanCreateFolder decides folder creation. Creation at the root needs only
// the coarse permission; creation inside a parent is delegated through the
// parent's edit capability.
func (e *Engine) CanCreateFolder(ctx context.Context, actor Actor, parent *foldermodel.Folder) bool {
	if parent == nil {
		return actor.Perms.Has(PermFoldersCreate)
	}
	return e.CanFolder(ctx, actor, parent, ActionUpdate)
}

// fileCheck runs the shared precedence ladder for a file capability.
func (e *Engine) fileCheck(ctx context.Context, actor Actor, f *filemodel.File, cap permission.Capability, coarse string, ignoreDeleted bool) bool {
	if !ignoreDeleted && f.IsDeleted() {
		return false
	}

	if e.fileGrant(ctx, actor, f.ID, cap) {
		return true
	}

	chain := e.ancestorChain(ctx, f.FolderID)
	if e.folderGrant(ctx, actor, chain, cap) {
		return true
	}

	if !actor.Perms.Has(coarse) {
		return false
	}

	if f.OwnerUserID == actor.UserID {
		return true
	}

	if e.sameDepartment(actor, f.DepartmentID) && departmentVisible(f.Visibility) {
		return !e.overrideGatedFile(ctx, f.ID, chain)
	}

	return false
}

func (e *Engine) folderCheck(ctx context.Context, actor Actor, fo *foldermodel.Folder, cap permission.Capability, coarse string, ignoreDeleted bool) bool {
	if !ignoreDeleted && fo.IsDeleted() {
		return false
	}

	// the folder's own row is the explicit grant, its parents the chain
	if e.folderGrant(ctx, actor, []int64{fo.ID}, cap) {
		return true
	}

	var chain []int64
	if fo.ParentID != nil {
		chain = e.ancestorChain(ctx, *fo.ParentID)
	}
	if e.folderGrant(ctx, actor, chain, cap) {
		return true
	}

	if !actor.Perms.Has(coarse) {
		return false
	}

	if fo.OwnerUserID != nil && *fo.OwnerUserID == actor.UserID {
		return true
	}

	if e.sameDepartment(actor, fo.DepartmentID) && departmentVisibleFolder(fo.Visibility) {
		gateScope := append([]int64{fo.ID}, chain...)
		gated, err := e.perms.FolderSetHasOverrides(ctx, gateScope)
		if err != nil {
			e.logger.Warn("override lookup failed, denying", "folder_id", fo.ID, "error", err)
			return false
		}
		return !gated
	}

	return false
}

func (e *Engine) canShareFile(ctx context.Context, actor Actor, f *filemodel.File) bool {
	if !actor.Perms.Has(PermShareManage) {
		return false
	}
	if !e.CanFile(ctx, actor, f, ActionView) {
		return false
	}
	if f.OwnerUserID == actor.UserID || e.sameDepartment(actor, f.DepartmentID) {
		return true
	}
	if e.fileGrant(ctx, actor, f.ID, permission.CapabilityEdit) {
		return true
	}
	return e.folderGrant(ctx, actor, e.ancestorChain(ctx, f.FolderID), permission.CapabilityEdit)
}

func (e *Engine) canShareFolder(ctx context.Context, actor Actor, fo *foldermodel.Folder) bool {
	if !actor.Perms.Has(PermShareManage) {
		return false
	}
	if !e.CanFolder(ctx, actor, fo, ActionView) {
		return false
	}
	if fo.OwnerUserID != nil && *fo.OwnerUserID == actor.UserID {
		return true
	}
	if e.sameDepartment(actor, fo.DepartmentID) {
		return true
	}
	scope := append([]int64{fo.ID}, e.parentChain(ctx, fo)...)
	return e.folderGrant(ctx, actor, scope, permission.CapabilityEdit)
}

// ancestorChain walks parent links from the given folder to the root. The
// chain includes the starting folder. Cycles should never exist, but the
// visited set guarantees termination if one does.
func (e *Engine) ancestorChain(ctx context.Context, folderID int64) []int64 {
	var chain []int64
	visited := make(map[int64]struct{})

	current := folderID
	for {
		if _, seen := visited[current]; seen {
			e.logger.Warn("folder ancestry cycle detected", "folder_id", current)
			return chain
		}
		visited[current] = struct{}{}
		chain = append(chain, current)

		fo, err := e.folders.FolderByID(ctx, current)
		if err != nil {
			e.logger.Warn("folder lookup failed during ancestor walk", "folder_id", current, "error", err)
			return chain
		}
		if fo == nil || fo.ParentID == nil {
			return chain
		}
		current = *fo.ParentID
	}
}

func (e *Engine) parentChain(ctx context.Context, fo *foldermodel.Folder) []int64 {
	if fo.ParentID == nil {
		return nil
	}
	return e.ancestorChain(ctx, *fo.ParentID)
}

func (e *Engine) fileGrant(ctx context.Context, actor Actor, fileID int64, cap permission.Capability) bool {
	p, err := e.perms.FilePermission(ctx, fileID, actor.UserID)
	if err != nil {
		e.logger.Warn("file permission lookup failed, denying", "file_id", fileID, "error", err)
		return false
	}
	return p != nil && p.Allows(cap)
}

func (e *Engine) folderGrant(ctx context.Context, actor Actor, folderIDs []int64, cap permission.Capability) bool {
	if len(folderIDs) == 0 {
		return false
	}
	grants, err := e.perms.FolderPermissions(ctx, folderIDs, actor.UserID)
	if err != nil {
		e.logger.Warn("folder permission lookup failed, denying", "error", err)
		return false
	}
	for _, g := range grants {
		if g.Allows(cap) {
			return true
		}
		// an upload check is satisfied by an edit grant as well
		if cap == permission.CapabilityUpload && g.Allows(permission.CapabilityEdit) {
			return true
		}
	}
	return false
}

// overrideGatedFile reports whether any fine-grained permission row exists on
// the file or anywhere on its folder ancestry. One such row suspends
// department-wide implicit access.
func (e *Engine) overrideGatedFile(ctx context.Context, fileID int64, chain []int64) bool {
	gated, err := e.perms.FileHasOverrides(ctx, fileID)
	if err != nil {
		e.logger.Warn("override lookup failed, denying", "file_id", fileID, "error", err)
		return true
	}
	if gated {
		return true
	}
	gated, err = e.perms.FolderSetHasOverrides(ctx, chain)
	if err != nil {
		e.logger.Warn("override lookup failed, denying", "file_id", fileID, "error", err)
		return true
	}
	return gated
}

func (e *Engine) sameDepartment(actor Actor, deptID *int64) bool {
	return actor.DepartmentID != nil && deptID != nil && *actor.DepartmentID == *deptID
}

func departmentVisible(v filemodel.Visibility) bool {
	return v == filemodel.VisibilityDepartment || v == filemodel.VisibilityShared
}

func departmentVisibleFolder(v foldermodel.Visibility) bool {
	return v == foldermodel.VisibilityDepartment || v == foldermodel.VisibilityShared
}
