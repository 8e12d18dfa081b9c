package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
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

// Repository interface defines the data access methods for files
type Repository interface {
	Create(ctx context.Context, f *filemodel.File) error
	ByID(ctx context.Context, id int64) (*filemodel.File, error)
	ByPublicID(ctx context.Context, publicID string) (*filemodel.File, error)
	Update(ctx context.Context, f *filemodel.File) error
	SetLifecycle(ctx context.Context, id int64, lc filemodel.Lifecycle, at *time.Time) error
	CreateVersion(ctx context.Context, v *filemodel.Version) error
	Versions(ctx context.Context, fileID int64) ([]*filemodel.Version, error)
	Version(ctx context.Context, fileID int64, versionNo int) (*filemodel.Version, error)
}

// FolderReader resolves the containment folder for upload and move checks.
type FolderReader interface {
	FolderByPublicID(ctx context.Context, publicID string) (*foldermodel.Folder, error)
}

// Enqueuer hands freshly stored files to the safety pipeline.
type Enqueuer interface {
	EnqueueUploaded(fileID int64)
}

// Service handles file business logic
type Service struct {
	repo     Repository
	folders  FolderReader
	disks    *storage.Registry
	pipeline Enqueuer
	engine   *authz.Engine
	audits   *audit.Service
	logger   *slog.Logger
}

func NewService(repo Repository, folders FolderReader, disks *storage.Registry, pipeline Enqueuer, engine *authz.Engine, audits *audit.Service, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		folders:  folders,
		disks:    disks,
		pipeline: pipeline,
		engine:   engine,
		audits:   audits,
		logger:   logger,
	}
}

func (s *Service) allowed(ctx context.Context, actor authz.Actor, f *filemodel.File, action authz.Action) bool {
	return actor.SuperAdmin || s.engine.CanFile(ctx, actor, f, action)
}

func (s *Service) objectPath(publicID, name string, now time.Time) string {
	return path.Join("files", now.Format("2006/01/02"), fmt.Sprintf("%s_%s", publicID, name))
}

// Upload stores the bytes first, then the row, then schedules the checksum
// and antivirus jobs. The file is visible immediately; the pipeline fills in
// checksum and scan status behind it.
func (s *Service) Upload(ctx context.Context, actor authz.Actor, folderPublicID string, in UploadInput) (*filemodel.File, error) {
	if in.Name == "" {
		return nil, internal.NewValidationError("file name is required", internal.ErrCodeInvalidName)
	}
	if in.Size <= 0 {
		return nil, internal.NewValidationError("uploaded file is empty", internal.ErrCodeEmptyUpload)
	}

	fo, err := s.folders.FolderByPublicID(ctx, folderPublicID)
	if err != nil {
		return nil, err
	}
	if fo == nil || fo.IsDeleted() {
		return nil, internal.ErrFolderNotFound
	}
	if !actor.SuperAdmin && !s.engine.CanFolder(ctx, actor, fo, authz.ActionUpload) {
		return nil, internal.ErrAccessDenied
	}

	now := time.Now()
	publicID := uuid.NewString()
	objectPath := s.objectPath(publicID, in.Name, now)
	diskName := s.disks.DefaultDisk()
	backend, err := s.disks.Disk(diskName)
	if err != nil {
		return nil, err
	}

	if err := backend.Write(ctx, objectPath, in.Content, in.Size, in.MimeType); err != nil {
		s.logger.Error("failed to store uploaded bytes", "error", err, "path", objectPath)
		return nil, internal.NewInternalError("failed to store file", err)
	}

	visibility := filemodel.VisibilityPrivate
	if fo.DepartmentID != nil {
		visibility = filemodel.VisibilityDepartment
	}

	f := &filemodel.File{
		PublicID:     publicID,
		FolderID:     fo.ID,
		OwnerUserID:  actor.UserID,
		DepartmentID: fo.DepartmentID,
		Name:         in.Name,
		OriginalName: in.Name,
		MimeType:     in.MimeType,
		Size:         in.Size,
		Disk:         diskName,
		Path:         objectPath,
		Visibility:   visibility,
		ScanStatus:   filemodel.ScanStatusPending,
		Lifecycle:    filemodel.LifecycleLive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		// best effort cleanup, the row never existed
		if delErr := backend.Delete(ctx, objectPath); delErr != nil {
			s.logger.Error("orphaned object after failed insert", "path", objectPath, "error", delErr)
		}
		return nil, err
	}

	version := &filemodel.Version{
		FileID:    f.ID,
		VersionNo: 1,
		Disk:      diskName,
		Path:      objectPath,
		Size:      in.Size,
		CreatedBy: actor.UserID,
		CreatedAt: now,
	}
	if err := s.repo.CreateVersion(ctx, version); err != nil {
		s.logger.Error("failed to record initial version", "error", err, "file_id", f.ID)
		return nil, err
	}

	s.pipeline.EnqueueUploaded(f.ID)

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileUploaded, "file", &f.ID, map[string]any{
		"name":      f.Name,
		"size":      f.Size,
		"folder_id": fo.ID,
	})
	return f, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, publicID string) (*filemodel.File, error) {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionView) {
		return nil, internal.ErrAccessDenied
	}
	return f, nil
}

// Download opens the stored bytes for an authorized actor.
func (s *Service) Download(ctx context.Context, actor authz.Actor, publicID string) (io.ReadCloser, *filemodel.File, error) {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, nil, err
	}
	if f == nil {
		return nil, nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionDownload) {
		return nil, nil, internal.ErrAccessDenied
	}

	stream, err := s.OpenContent(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileDownloaded, "file", &f.ID, map[string]any{
		"name": f.Name,
	})
	return stream, f, nil
}

// OpenContent streams the current bytes of a file the caller has already
// authorized, for example through a resolved share link.
func (s *Service) OpenContent(ctx context.Context, f *filemodel.File) (io.ReadCloser, error) {
	backend, err := s.disks.Disk(f.Disk)
	if err != nil {
		return nil, err
	}
	stream, err := backend.ReadStream(ctx, f.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, internal.ErrFileNotFound
		}
		return nil, err
	}
	return stream, nil
}

func (s *Service) Rename(ctx context.Context, actor authz.Actor, publicID string, dto RenameFileDTO) (*filemodel.File, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionUpdate) {
		return nil, internal.ErrAccessDenied
	}

	old := f.Name
	f.Name = dto.Name
	f.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileRenamed, "file", &f.ID, map[string]any{
		"from": old,
		"to":   f.Name,
	})
	return f, nil
}

// Move relocates a file into another folder. The actor needs update on the
// file and upload on the destination.
func (s *Service) Move(ctx context.Context, actor authz.Actor, publicID string, dto MoveFileDTO) (*filemodel.File, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionUpdate) {
		return nil, internal.ErrAccessDenied
	}

	fo, err := s.folders.FolderByPublicID(ctx, dto.FolderPublicID)
	if err != nil {
		return nil, err
	}
	if fo == nil || fo.IsDeleted() {
		return nil, internal.ErrFolderNotFound
	}
	if !actor.SuperAdmin && !s.engine.CanFolder(ctx, actor, fo, authz.ActionUpload) {
		return nil, internal.ErrAccessDenied
	}

	f.FolderID = fo.ID
	f.DepartmentID = fo.DepartmentID
	f.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileMoved, "file", &f.ID, map[string]any{
		"folder_id": fo.ID,
	})
	return f, nil
}

func (s *Service) Trash(ctx context.Context, actor authz.Actor, publicID string) error {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if f == nil {
		return internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionDelete) {
		return internal.ErrAccessDenied
	}

	now := time.Now()
	if err := s.repo.SetLifecycle(ctx, f.ID, filemodel.LifecycleTrashed, &now); err != nil {
		return err
	}
	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileTrashed, "file", &f.ID, map[string]any{
		"name": f.Name,
	})
	return nil
}

func (s *Service) Restore(ctx context.Context, actor authz.Actor, publicID string) error {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if f == nil || f.Lifecycle == filemodel.LifecyclePurged {
		return internal.ErrFileNotFound
	}
	// a quarantined file stays quarantined
	if f.ScanStatus == filemodel.ScanStatusInfected {
		return internal.ErrAccessDenied
	}
	if !s.allowed(ctx, actor, f, authz.ActionRestore) {
		return internal.ErrAccessDenied
	}

	if err := s.repo.SetLifecycle(ctx, f.ID, filemodel.LifecycleLive, nil); err != nil {
		return err
	}
	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileRestored, "file", &f.ID, map[string]any{
		"name": f.Name,
	})
	return nil
}

// Purge permanently deletes a trashed file: every stored version is removed
// from its disk and the row flips to purged.
func (s *Service) Purge(ctx context.Context, actor authz.Actor, publicID string) error {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if f == nil || f.Lifecycle == filemodel.LifecyclePurged {
		return internal.ErrFileNotFound
	}
	if f.Lifecycle != filemodel.LifecycleTrashed {
		return internal.NewConflictError("File must be trashed before it can be purged", internal.ErrCodeResourceTrashed)
	}
	if !s.allowed(ctx, actor, f, authz.ActionRestore) {
		return internal.ErrAccessDenied
	}

	versions, err := s.repo.Versions(ctx, f.ID)
	if err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for _, v := range versions {
		key := v.Disk + ":" + v.Path
		if _, done := seen[key]; done {
			continue
		}
		seen[key] = struct{}{}

		backend, err := s.disks.Disk(v.Disk)
		if err != nil {
			return err
		}
		if err := backend.Delete(ctx, v.Path); err != nil {
			return err
		}
	}
	if _, done := seen[f.Disk+":"+f.Path]; !done {
		backend, err := s.disks.Disk(f.Disk)
		if err != nil {
			return err
		}
		if err := backend.Delete(ctx, f.Path); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := s.repo.SetLifecycle(ctx, f.ID, filemodel.LifecyclePurged, &now); err != nil {
		return err
	}
	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFilePurged, "file", &f.ID, map[string]any{
		"name":     f.Name,
		"versions": len(versions),
	})
	return nil
}

// UploadVersion stores new content for an existing file. The previous
// content stays reachable through its version row; the file row points at
// the new bytes and goes back through the safety pipeline.
func (s *Service) UploadVersion(ctx context.Context, actor authz.Actor, publicID string, in UploadInput) (*filemodel.File, error) {
	if in.Size <= 0 {
		return nil, internal.NewValidationError("uploaded file is empty", internal.ErrCodeEmptyUpload)
	}

	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionUpdate) {
		return nil, internal.ErrAccessDenied
	}

	versions, err := s.repo.Versions(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	nextNo := 1
	for _, v := range versions {
		if v.VersionNo >= nextNo {
			nextNo = v.VersionNo + 1
		}
	}

	now := time.Now()
	name := f.Name
	if in.Name != "" {
		name = in.Name
	}
	objectPath := s.objectPath(uuid.NewString(), name, now)
	backend, err := s.disks.Disk(f.Disk)
	if err != nil {
		return nil, err
	}
	if err := backend.Write(ctx, objectPath, in.Content, in.Size, in.MimeType); err != nil {
		return nil, internal.NewInternalError("failed to store file version", err)
	}

	version := &filemodel.Version{
		FileID:    f.ID,
		VersionNo: nextNo,
		Disk:      f.Disk,
		Path:      objectPath,
		Size:      in.Size,
		CreatedBy: actor.UserID,
		CreatedAt: now,
	}
	if err := s.repo.CreateVersion(ctx, version); err != nil {
		if delErr := backend.Delete(ctx, objectPath); delErr != nil {
			s.logger.Error("orphaned object after failed version insert", "path", objectPath, "error", delErr)
		}
		return nil, err
	}

	f.Name = name
	if in.MimeType != "" {
		f.MimeType = in.MimeType
	}
	f.Size = in.Size
	f.Path = objectPath
	f.Checksum = nil
	f.ScanStatus = filemodel.ScanStatusPending
	f.UpdatedAt = now
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}

	s.pipeline.EnqueueUploaded(f.ID)

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileVersioned, "file", &f.ID, map[string]any{
		"version_no": nextNo,
		"size":       in.Size,
	})
	return f, nil
}

func (s *Service) ListVersions(ctx context.Context, actor authz.Actor, publicID string) ([]*filemodel.Version, error) {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionView) {
		return nil, internal.ErrAccessDenied
	}
	return s.repo.Versions(ctx, f.ID)
}

func (s *Service) DownloadVersion(ctx context.Context, actor authz.Actor, publicID string, versionNo int) (io.ReadCloser, *filemodel.Version, error) {
	f, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		return nil, nil, err
	}
	if f == nil {
		return nil, nil, internal.ErrFileNotFound
	}
	if !s.allowed(ctx, actor, f, authz.ActionDownload) {
		return nil, nil, internal.ErrAccessDenied
	}

	v, err := s.repo.Version(ctx, f.ID, versionNo)
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		return nil, nil, internal.ErrFileNotFound
	}

	backend, err := s.disks.Disk(v.Disk)
	if err != nil {
		return nil, nil, err
	}
	stream, err := backend.ReadStream(ctx, v.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, internal.ErrFileNotFound
		}
		return nil, nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionFileDownloaded, "file", &f.ID, map[string]any{
		"version_no": versionNo,
	})
	return stream, v, nil
}
