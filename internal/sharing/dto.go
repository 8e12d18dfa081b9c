package sharing

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GrantFilePermissionDTO assigns capability flags on a single file to a user.
type GrantFilePermissionDTO struct {
	UserID      int64 `json:"user_id" validate:"required,min=1"`
	CanView     bool  `json:"can_view"`
	CanDownload bool  `json:"can_download"`
	CanEdit     bool  `json:"can_edit"`
	CanDelete   bool  `json:"can_delete"`
}

func (dto GrantFilePermissionDTO) Validate() error {
	return validate.Struct(dto)
}

type GrantFolderPermissionDTO struct {
	UserID    int64 `json:"user_id" validate:"required,min=1"`
	CanView   bool  `json:"can_view"`
	CanUpload bool  `json:"can_upload"`
	CanEdit   bool  `json:"can_edit"`
	CanDelete bool  `json:"can_delete"`
}

func (dto GrantFolderPermissionDTO) Validate() error {
	return validate.Struct(dto)
}

// GrantFolderToDepartmentDTO fans a folder grant out to every active member
// of a department at grant time.
type GrantFolderToDepartmentDTO struct {
	DepartmentID int64 `json:"department_id" validate:"required,min=1"`
	CanView      bool  `json:"can_view"`
	CanUpload    bool  `json:"can_upload"`
	CanEdit      bool  `json:"can_edit"`
	CanDelete    bool  `json:"can_delete"`
}

func (dto GrantFolderToDepartmentDTO) Validate() error {
	return validate.Struct(dto)
}

type CreateShareLinkDTO struct {
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxDownloads *int64     `json:"max_downloads,omitempty" validate:"omitempty,min=1"`
	Password     *string    `json:"password,omitempty" validate:"omitempty,min=6,max=72"`
}

func (dto CreateShareLinkDTO) Validate() error {
	return validate.Struct(dto)
}

type ResolveShareLinkDTO struct {
	Password string `json:"password"`
}

// ShareLinkResponse hides the password hash and internal ids.
type ShareLinkResponse struct {
	PublicID      string     `json:"id"`
	Token         string     `json:"token"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxDownloads  *int64     `json:"max_downloads,omitempty"`
	DownloadCount int64      `json:"download_count"`
	HasPassword   bool       `json:"has_password"`
	Revoked       bool       `json:"revoked"`
	CreatedAt     time.Time  `json:"created_at"`
}
