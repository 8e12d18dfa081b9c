package sharing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	"github.com/deptfile/file-management/internal/authz"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/core/datamodel/permission"
	"github.com/deptfile/file-management/internal/core/datamodel/sharelink"
)

// Repository interface defines the data access methods for sharing
type Repository interface {
	UpsertFilePermission(ctx context.Context, p *permission.FilePermission) error
	DeleteFilePermission(ctx context.Context, fileID, userID int64) error
	UpsertFolderPermission(ctx context.Context, p *permission.FolderPermission) error
	DeleteFolderPermission(ctx context.Context, folderID, userID int64) error

	CreateShareLink(ctx context.Context, link *sharelink.ShareLink) error
	ShareLinkByToken(ctx context.Context, token string) (*sharelink.ShareLink, error)
	ShareLinkByPublicID(ctx context.Context, publicID string) (*sharelink.ShareLink, error)
	ListShareLinks(ctx context.Context, fileID int64) ([]*sharelink.ShareLink, error)
	RevokeShareLink(ctx context.Context, id int64, at time.Time) error
	// ConsumeDownload bumps download_count by one, but only while the link is
	// still live under its own constraints. Returns false when the link was
	// revoked, expired or exhausted by the time the update ran.
	ConsumeDownload(ctx context.Context, id int64, now time.Time) (bool, error)
}

// FileReader loads file rows by their public identifier. Missing rows are
// (nil, nil).
type FileReader interface {
	FileByPublicID(ctx context.Context, publicID string) (*filemodel.File, error)
	FileByID(ctx context.Context, id int64) (*filemodel.File, error)
}

type FolderReader interface {
	FolderByPublicID(ctx context.Context, publicID string) (*foldermodel.Folder, error)
}

// MemberDirectory resolves a department to the users a department-wide grant
// fans out to.
type MemberDirectory interface {
	ActiveUserIDsInDepartment(ctx context.Context, departmentID int64) ([]int64, error)
}

// Service handles permission grants and tokenized share links. Note that
// granting the first permission row on a resource implicitly switches that
// resource to explicit-grants-only for department colleagues; that is the
// authorization engine's override gate doing its job, not an action this
// service takes.
type Service struct {
	repo    Repository
	files   FileReader
	folders FolderReader
	members MemberDirectory
	engine  *authz.Engine
	audits  *audit.Service
	logger  *slog.Logger
}

func NewService(repo Repository, files FileReader, folders FolderReader, members MemberDirectory, engine *authz.Engine, audits *audit.Service, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		files:   files,
		folders: folders,
		members: members,
		engine:  engine,
		audits:  audits,
		logger:  logger,
	}
}

func (s *Service) canShareFile(ctx context.Context, actor authz.Actor, f *filemodel.File) bool {
	return actor.SuperAdmin || s.engine.CanFile(ctx, actor, f, authz.ActionShare)
}

func (s *Service) canShareFolder(ctx context.Context, actor authz.Actor, fo *foldermodel.Folder) bool {
	return actor.SuperAdmin || s.engine.CanFolder(ctx, actor, fo, authz.ActionShare)
}

func (s *Service) GrantFilePermission(ctx context.Context, actor authz.Actor, filePublicID string, dto GrantFilePermissionDTO) (*permission.FilePermission, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	f, err := s.files.FileByPublicID(ctx, filePublicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.canShareFile(ctx, actor, f) {
		return nil, internal.ErrAccessDenied
	}

	grant := &permission.FilePermission{
		FileID:      f.ID,
		UserID:      dto.UserID,
		CanView:     dto.CanView,
		CanDownload: dto.CanDownload,
		CanEdit:     dto.CanEdit,
		CanDelete:   dto.CanDelete,
		CreatedBy:   actor.UserID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.repo.UpsertFilePermission(ctx, grant); err != nil {
		s.logger.Error("failed to grant file permission", "error", err, "file_id", f.ID, "user_id", dto.UserID)
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionPermissionGranted, "file", &f.ID, map[string]any{
		"grantee_user_id": dto.UserID,
		"can_view":        dto.CanView,
		"can_download":    dto.CanDownload,
		"can_edit":        dto.CanEdit,
		"can_delete":      dto.CanDelete,
	})
	return grant, nil
}

func (s *Service) RevokeFilePermission(ctx context.Context, actor authz.Actor, filePublicID string, granteeUserID int64) error {
	f, err := s.files.FileByPublicID(ctx, filePublicID)
	if err != nil {
		return err
	}
	if f == nil {
		return internal.ErrFileNotFound
	}
	if !s.canShareFile(ctx, actor, f) {
		return internal.ErrAccessDenied
	}

	if err := s.repo.DeleteFilePermission(ctx, f.ID, granteeUserID); err != nil {
		return err
	}
	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionPermissionRevoked, "file", &f.ID, map[string]any{
		"grantee_user_id": granteeUserID,
	})
	return nil
}

func (s *Service) GrantFolderPermission(ctx context.Context, actor authz.Actor, folderPublicID string, dto GrantFolderPermissionDTO) (*permission.FolderPermission, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	fo, err := s.folders.FolderByPublicID(ctx, folderPublicID)
	if err != nil {
		return nil, err
	}
	if fo == nil {
		return nil, internal.ErrFolderNotFound
	}
	if !s.canShareFolder(ctx, actor, fo) {
		return nil, internal.ErrAccessDenied
	}

	grant := &permission.FolderPermission{
		FolderID:  fo.ID,
		UserID:    dto.UserID,
		CanView:   dto.CanView,
		CanUpload: dto.CanUpload,
		CanEdit:   dto.CanEdit,
		CanDelete: dto.CanDelete,
		CreatedBy: actor.UserID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.UpsertFolderPermission(ctx, grant); err != nil {
		s.logger.Error("failed to grant folder permission", "error", err, "folder_id", fo.ID, "user_id", dto.UserID)
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionPermissionGranted, "folder", &fo.ID, map[string]any{
		"grantee_user_id": dto.UserID,
		"can_view":        dto.CanView,
		"can_upload":      dto.CanUpload,
		"can_edit":        dto.CanEdit,
		"can_delete":      dto.CanDelete,
	})
	return grant, nil
}

// GrantFolderToDepartment expands a department grant into one folder
// permission row per active member. The expansion is a grant-time snapshot:
// users joining the department later do not inherit it.
func (s *Service) GrantFolderToDepartment(ctx context.Context, actor authz.Actor, folderPublicID string, dto GrantFolderToDepartmentDTO) (int, error) {
	if err := dto.Validate(); err != nil {
		return 0, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	fo, err := s.folders.FolderByPublicID(ctx, folderPublicID)
	if err != nil {
		return 0, err
	}
	if fo == nil {
		return 0, internal.ErrFolderNotFound
	}
	if !s.canShareFolder(ctx, actor, fo) {
		return 0, internal.ErrAccessDenied
	}

	memberIDs, err := s.members.ActiveUserIDsInDepartment(ctx, dto.DepartmentID)
	if err != nil {
		return 0, err
	}

	granted := 0
	for _, userID := range memberIDs {
		if userID == actor.UserID {
			continue
		}
		grant := &permission.FolderPermission{
			FolderID:  fo.ID,
			UserID:    userID,
			CanView:   dto.CanView,
			CanUpload: dto.CanUpload,
			CanEdit:   dto.CanEdit,
			CanDelete: dto.CanDelete,
			CreatedBy: actor.UserID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.repo.UpsertFolderPermission(ctx, grant); err != nil {
			s.logger.Error("department grant fan-out failed mid-way",
				"error", err, "folder_id", fo.ID, "user_id", userID, "granted_so_far", granted)
			return granted, err
		}
		granted++
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionPermissionGranted, "folder", &fo.ID, map[string]any{
		"department_id": dto.DepartmentID,
		"member_count":  granted,
		"can_view":      dto.CanView,
		"can_upload":    dto.CanUpload,
		"can_edit":      dto.CanEdit,
		"can_delete":    dto.CanDelete,
	})
	return granted, nil
}

func (s *Service) RevokeFolderPermission(ctx context.Context, actor authz.Actor, folderPublicID string, granteeUserID int64) error {
	fo, err := s.folders.FolderByPublicID(ctx, folderPublicID)
	if err != nil {
		return err
	}
	if fo == nil {
		return internal.ErrFolderNotFound
	}
	if !s.canShareFolder(ctx, actor, fo) {
		return internal.ErrAccessDenied
	}

	if err := s.repo.DeleteFolderPermission(ctx, fo.ID, granteeUserID); err != nil {
		return err
	}
	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionPermissionRevoked, "folder", &fo.ID, map[string]any{
		"grantee_user_id": granteeUserID,
	})
	return nil
}

func (s *Service) CreateShareLink(ctx context.Context, actor authz.Actor, filePublicID string, dto CreateShareLinkDTO) (*sharelink.ShareLink, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	f, err := s.files.FileByPublicID(ctx, filePublicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.canShareFile(ctx, actor, f) {
		return nil, internal.ErrAccessDenied
	}

	link := &sharelink.ShareLink{
		PublicID:  uuid.NewString(),
		FileID:    f.ID,
		Token:     uuid.NewString(),
		ExpiresAt: dto.ExpiresAt,
		CreatedBy: actor.UserID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if dto.MaxDownloads != nil {
		link.MaxDownloads = dto.MaxDownloads
	}
	if dto.Password != nil && *dto.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*dto.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, internal.NewInternalError("failed to hash share link password", err)
		}
		hashStr := string(hash)
		link.PasswordHash = &hashStr
	}

	if err := s.repo.CreateShareLink(ctx, link); err != nil {
		s.logger.Error("failed to create share link", "error", err, "file_id", f.ID)
		return nil, err
	}

	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionShareLinkCreated, "share_link", &link.ID, map[string]any{
		"file_id":       f.ID,
		"expires_at":    dto.ExpiresAt,
		"max_downloads": dto.MaxDownloads,
		"has_password":  link.RequiresPassword(),
	})
	return link, nil
}

func (s *Service) ListShareLinks(ctx context.Context, actor authz.Actor, filePublicID string) ([]*sharelink.ShareLink, error) {
	f, err := s.files.FileByPublicID(ctx, filePublicID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, internal.ErrFileNotFound
	}
	if !s.canShareFile(ctx, actor, f) {
		return nil, internal.ErrAccessDenied
	}
	return s.repo.ListShareLinks(ctx, f.ID)
}

func (s *Service) RevokeShareLink(ctx context.Context, actor authz.Actor, linkPublicID string) error {
	link, err := s.repo.ShareLinkByPublicID(ctx, linkPublicID)
	if err != nil {
		return err
	}
	if link == nil {
		return internal.ErrShareLinkNotFound
	}

	f, err := s.files.FileByID(ctx, link.FileID)
	if err != nil {
		return err
	}
	if f == nil {
		return internal.ErrShareLinkNotFound
	}
	if !s.canShareFile(ctx, actor, f) && link.CreatedBy != actor.UserID {
		return internal.ErrAccessDenied
	}

	if err := s.repo.RevokeShareLink(ctx, link.ID, time.Now()); err != nil {
		return err
	}
	s.audits.Log(ctx, &actor.UserID, auditmodel.ActionShareLinkRevoked, "share_link", &link.ID, map[string]any{
		"file_id": link.FileID,
	})
	return nil
}

// Resolve validates a token for anonymous access without consuming a
// download. Revoked, expired and exhausted links are indistinguishable to the
// caller.
func (s *Service) Resolve(ctx context.Context, token, password string) (*sharelink.ShareLink, *filemodel.File, error) {
	link, f, err := s.lookup(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}
	return link, f, nil
}

// ResolveForDownload additionally consumes one download from the link's
// quota. The bump is a conditional update, so two concurrent downloads of a
// one-download link cannot both succeed.
func (s *Service) ResolveForDownload(ctx context.Context, token, password string) (*sharelink.ShareLink, *filemodel.File, error) {
	link, f, err := s.lookup(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}

	consumed, err := s.repo.ConsumeDownload(ctx, link.ID, time.Now())
	if err != nil {
		return nil, nil, err
	}
	if !consumed {
		return nil, nil, internal.ErrShareLinkExpired
	}
	link.DownloadCount++

	s.audits.Log(ctx, nil, auditmodel.ActionShareLinkAccessed, "share_link", &link.ID, map[string]any{
		"file_id":        link.FileID,
		"download_count": link.DownloadCount,
	})
	return link, f, nil
}

func (s *Service) lookup(ctx context.Context, token, password string) (*sharelink.ShareLink, *filemodel.File, error) {
	link, err := s.repo.ShareLinkByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if link == nil {
		return nil, nil, internal.ErrShareLinkNotFound
	}
	if !link.IsAccessible(time.Now()) {
		return nil, nil, internal.ErrShareLinkExpired
	}

	if link.RequiresPassword() {
		if password == "" {
			return nil, nil, internal.ErrShareLinkPassword
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)); err != nil {
			return nil, nil, internal.ErrShareLinkPassword
		}
	}

	f, err := s.files.FileByID(ctx, link.FileID)
	if err != nil {
		return nil, nil, err
	}
	// A trashed or quarantined file is unreachable even through a live link.
	if f == nil || f.IsDeleted() {
		return nil, nil, internal.ErrShareLinkNotFound
	}
	return link, f, nil
}

func ToShareLinkResponse(link *sharelink.ShareLink) ShareLinkResponse {
	return ShareLinkResponse{
		PublicID:      link.PublicID,
		Token:         link.Token,
		ExpiresAt:     link.ExpiresAt,
		MaxDownloads:  link.MaxDownloads,
		DownloadCount: link.DownloadCount,
		HasPassword:   link.RequiresPassword(),
		Revoked:       link.RevokedAt != nil,
		CreatedAt:     link.CreatedAt,
	}
}
