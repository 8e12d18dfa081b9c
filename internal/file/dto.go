package file

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
)

var validate = validator.New()

// UploadInput carries one multipart part into the service. Size is taken
// from the part header and verified against the bytes actually written.
type UploadInput struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

type RenameFileDTO struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

func (dto RenameFileDTO) Validate() error {
	return validate.Struct(dto)
}

type MoveFileDTO struct {
	FolderPublicID string `json:"folder_id" validate:"required"`
}

func (dto MoveFileDTO) Validate() error {
	return validate.Struct(dto)
}

type FileResponse struct {
	PublicID     string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name,omitempty"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Checksum     *string   `json:"checksum,omitempty"`
	Visibility   string    `json:"visibility"`
	ScanStatus   string    `json:"scan_status"`
	Trashed      bool      `json:"trashed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToResponse(f *filemodel.File) FileResponse {
	return FileResponse{
		PublicID:     f.PublicID,
		Name:         f.Name,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		Checksum:     f.Checksum,
		Visibility:   string(f.Visibility),
		ScanStatus:   string(f.ScanStatus),
		Trashed:      f.IsDeleted(),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

type VersionResponse struct {
	VersionNo int       `json:"version_no"`
	Size      int64     `json:"size"`
	Checksum  *string   `json:"checksum,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func ToVersionResponse(v *filemodel.Version) VersionResponse {
	return VersionResponse{
		VersionNo: v.VersionNo,
		Size:      v.Size,
		Checksum:  v.Checksum,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
	}
}
