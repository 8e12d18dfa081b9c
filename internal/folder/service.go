package folder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	"github.com/deptfile/file-management/internal/authz"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/storage"
)

// Repository interface defines the data access methods for folders
type Repository interface {
	Create(ctx context.Context, fo *foldermodel.Folder) error
	ByID(ctx context.Context, id int64) (*foldermodel.Folder, error)
	ByPublicID(ctx context.Context, publicID string) (*foldermodel.Folder, error)
	Children(ctx context.Context, parentID int64) ([]*foldermodel.Folder, error)
	Roots(ctx context.Context, ownerUserID int64, departmentID *int64) ([]*foldermodel.Folder, error)
	Update(ctx context.Context, fo *foldermodel.Folder) error
	SetLifecycle(ctx context.Context, folderIDs []int64, lc foldermodel.Lifecycle, at *time.Time) error
	SetFileLifecycle(ctx context.Context, folderIDs []int64, lc filemodel.Lifecycle, at *time.Time) error
	FilesInFolders(ctx context.Context, folderIDs []int64) ([]*filemodel.File, error)
}

// Service handles folder tree business logic
type Service struct {
	repo   Repository
	disks  *storage.Registry
	engine *authz.Engine
	audits *audit.Service
	logger *slog.Logger
}

func NewService(repo Repository, disks *storage.Registry, engine *authz.Engine, audits *audit.Service, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		disks:  disks,
		engine: engine,
		audits: audits,
		logger: logger,
	}
}

func (s *Service) allowed(ctx context.Context, actor authz.Actor, fo *foldermodel.Folder, action authz.Action) bool {
	return actor.SuperAdmin || s.engine.CanFolder(ctx, actor, fo, action)
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, dto CreateFolderDTO) (*foldermodel.Folder, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	var parent *foldermodel.Folder
	if dto.ParentPublicID != nil {
		var err error
		parent, err = s.repo.ByPublicID(ctx, *dto.ParentPublicID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.IsDeleted() {
			return nil, internal.ErrFolderNotFound
		}
	}

	if !actor.SuperAdmin && !s.engine.CanCreateFolder(ctx, actor, parent) {
		return nil, internal.ErrAccessDenied
	}

	fo := &foldermodel.Folder{
		PublicID:   uuid.NewString(),
		Name:       dto.Name,
		Visibility: foldermodel.VisibilityPrivate,
		Lifecycle:  foldermodel.LifecycleLive,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if dto.Visibility != "" {
		fo.Visibility = foldermodel.Visibility(dto.Visibility)
	}
	if parent != nil {
		fo.ParentID = &parent.ID
	}

	if dto.DepartmentID != nil {
		fo.DepartmentID = dto.DepartmentID
	} else {
		owner := actor.UserID
		fo.OwnerUserID = &owner
	}
	if err := fo.ValidateScope(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidScope)
	}

	if err := s.repo.Create(ctx, fo); err != nil {
		s.logger.Error("failed to create folder", "error", err, "name", dto.Name)
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFolderCreated, "folder", &fo.ID, map[string]any{
		"name":      fo.Name,
		"parent_id": fo.ParentID,
	})
	return fo, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, publicID string) (*foldermodel.Folder, error) {
	fo, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if fo == nil {
		return nil, internal.ErrFolderNotFound
	}
	if !s.allowed(ctx, actor, fo, authz.ActionView) {
		return nil, internal.ErrAccessDenied
	}
	return fo, nil
}

// ListChildren returns the live sub-folders and files the actor can see
// inside a folder. Children the actor lacks view on are filtered out rather
// than erroring: a shared folder can legitimately contain resources with
// narrower grants.
func (s *Service) ListChildren(ctx context.Context, actor authz.Actor, publicID string) ([]*foldermodel.Folder, []*filemodel.File, error) {
	fo, err := s.Get(ctx, actor, publicID)
	if err != nil {
		return nil, nil, err
	}

	children, err := s.repo.Children(ctx, fo.ID)
	if err != nil {
		return nil, nil, err
	}
	var folders []*foldermodel.Folder
	for _, child := range children {
		if child.IsDeleted() {
			continue
		}
		if s.allowed(ctx, actor, child, authz.ActionView) {
			folders = append(folders, child)
		}
	}

	files, err := s.repo.FilesInFolders(ctx, []int64{fo.ID})
	if err != nil {
		return nil, nil, err
	}
	var visible []*filemodel.File
	for _, f := range files {
		if f.IsDeleted() {
			continue
		}
		if actor.SuperAdmin || s.engine.CanFile(ctx, actor, f, authz.ActionView) {
			visible = append(visible, f)
		}
	}
	return folders, visible, nil
}

// ListRoots returns the actor's own root folders plus their department's.
func (s *Service) ListRoots(ctx context.Context, actor authz.Actor) ([]*foldermodel.Folder, error) {
	roots, err := s.repo.Roots(ctx, actor.UserID, actor.DepartmentID)
	if err != nil {
		return nil, err
	}
	var visible []*foldermodel.Folder
	for _, fo := range roots {
		if fo.IsDeleted() {
			continue
		}
		if s.allowed(ctx, actor, fo, authz.ActionView) {
			visible = append(visible, fo)
		}
	}
	return visible, nil
}

func (s *Service) Rename(ctx context.Context, actor authz.Actor, publicID string, dto RenameFolderDTO) (*foldermodel.Folder, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	fo, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if fo == nil {
		return nil, internal.ErrFolderNotFound
	}
	if !s.allowed(ctx, actor, fo, authz.ActionUpdate) {
		return nil, internal.ErrAccessDenied
	}

	old := fo.Name
	fo.Name = dto.Name
	fo.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, fo); err != nil {
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFolderRenamed, "folder", &fo.ID, map[string]any{
		"from": old,
		"to":   fo.Name,
	})
	return fo, nil
}

// Move relocates a folder under a new parent (nil moves it to the root). The
// destination must not sit inside the folder's own subtree.
func (s *Service) Move(ctx context.Context, actor authz.Actor, publicID string, dto MoveFolderDTO) (*foldermodel.Folder, error) {
	fo, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if fo == nil {
		return nil, internal.ErrFolderNotFound
	}
	if !s.allowed(ctx, actor, fo, authz.ActionUpdate) {
		return nil, internal.ErrAccessDenied
	}

	var newParent *foldermodel.Folder
	if dto.ParentPublicID != nil {
		newParent, err = s.repo.ByPublicID(ctx, *dto.ParentPublicID)
		if err != nil {
			return nil, err
		}
		if newParent == nil || newParent.IsDeleted() {
			return nil, internal.ErrFolderNotFound
		}
		if !s.allowed(ctx, actor, newParent, authz.ActionUpdate) {
			return nil, internal.ErrAccessDenied
		}

		if newParent.ID == fo.ID {
			return nil, internal.ErrFolderCycle
		}
		inSubtree, err := s.isDescendant(ctx, newParent, fo.ID)
		if err != nil {
			return nil, err
		}
		if inSubtree {
			return nil, internal.ErrFolderCycle
		}
	}

	if newParent != nil {
		fo.ParentID = &newParent.ID
	} else {
		fo.ParentID = nil
	}
	fo.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, fo); err != nil {
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFolderMoved, "folder", &fo.ID, map[string]any{
		"new_parent_id": fo.ParentID,
	})
	return fo, nil
}

// isDescendant walks ancestors of candidate looking for folderID. A visited
// set bounds the walk even if the stored tree already contains a cycle.
func (s *Service) isDescendant(ctx context.Context, candidate *foldermodel.Folder, folderID int64) (bool, error) {
	visited := map[int64]struct{}{}
	current := candidate
	for current != nil && current.ParentID != nil {
		parentID := *current.ParentID
		if parentID == folderID {
			return true, nil
		}
		if _, seen := visited[parentID]; seen {
			return false, nil
		}
		visited[parentID] = struct{}{}

		next, err := s.repo.ByID(ctx, parentID)
		if err != nil {
			return false, err
		}
		current = next
	}
	return false, nil
}

// subtreeIDs collects the folder and every descendant, breadth-first, with
// cycle protection.
func (s *Service) subtreeIDs(ctx context.Context, rootID int64) ([]int64, error) {
	ids := []int64{rootID}
	visited := map[int64]struct{}{rootID: {}}
	queue := []int64{rootID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.repo.Children(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			ids = append(ids, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return ids, nil
}

// Trash soft-deletes the folder and its whole subtree, files included.
func (s *Service) Trash(ctx context.Context, actor authz.Actor, publicID string) error {
	fo, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if fo == nil {
		return internal.ErrFolderNotFound
	}
	if !s.allowed(ctx, actor, fo, authz.ActionDelete) {
		return internal.ErrAccessDenied
	}

	ids, err := s.subtreeIDs(ctx, fo.ID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.repo.SetLifecycle(ctx, ids, foldermodel.LifecycleTrashed, &now); err != nil {
		return err
	}
	if err := s.repo.SetFileLifecycle(ctx, ids, filemodel.LifecycleTrashed, &now); err != nil {
		return err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFolderTrashed, "folder", &fo.ID, map[string]any{
		"subtree_size": len(ids),
	})
	return nil
}

// Restore brings a trashed subtree back.
func (s *Service) Restore(ctx context.Context, actor authz.Actor, publicID string) error {
	fo, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if fo == nil || fo.Lifecycle == foldermodel.LifecyclePurged {
		return internal.ErrFolderNotFound
	}
	if !s.allowed(ctx, actor, fo, authz.ActionRestore) {
		return internal.ErrAccessDenied
	}

	ids, err := s.subtreeIDs(ctx, fo.ID)
	if err != nil {
		return err
	}
	if err := s.repo.SetLifecycle(ctx, ids, foldermodel.LifecycleLive, nil); err != nil {
		return err
	}
	if err := s.repo.SetFileLifecycle(ctx, ids, filemodel.LifecycleLive, nil); err != nil {
		return err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFolderRestored, "folder", &fo.ID, map[string]any{
		"subtree_size": len(ids),
	})
	return nil
}

// Purge permanently removes a trashed subtree: stored bytes are deleted and
// the rows flip to purged. Purging a live folder is rejected.
func (s *Service) Purge(ctx context.Context, actor authz.Actor, publicID string) error {
	fo, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if fo == nil || fo.Lifecycle == foldermodel.LifecyclePurged {
		return internal.ErrFolderNotFound
	}
	if fo.Lifecycle != foldermodel.LifecycleTrashed {
		return internal.NewConflictError("Folder must be trashed before it can be purged", internal.ErrCodeResourceTrashed)
	}
	if !s.allowed(ctx, actor, fo, authz.ActionRestore) {
		// purge is gated like restore: it operates on a trashed subtree
		return internal.ErrAccessDenied
	}

	ids, err := s.subtreeIDs(ctx, fo.ID)
	if err != nil {
		return err
	}

	files, err := s.repo.FilesInFolders(ctx, ids)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.Lifecycle == filemodel.LifecyclePurged {
			continue
		}
		backend, err := s.disks.Disk(f.Disk)
		if err != nil {
			return err
		}
		if err := backend.Delete(ctx, f.Path); err != nil {
			s.logger.Error("failed to delete stored bytes during purge",
				"error", err, "file_id", f.ID, "path", f.Path)
			return err
		}
	}

	now := time.Now()
	if err := s.repo.SetFileLifecycle(ctx, ids, filemodel.LifecyclePurged, &now); err != nil {
		return err
	}
	if err := s.repo.SetLifecycle(ctx, ids, foldermodel.LifecyclePurged, &now); err != nil {
		return err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFolderPurged, "folder", &fo.ID, map[string]any{
		"subtree_size": len(ids),
		"files_purged": len(files),
	})
	return nil
}
