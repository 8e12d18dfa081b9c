package folder

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateFolderDTO creates a folder either under a parent or at the root.
// Department-scoped folders carry a department id; personal folders are
// scoped to the creator.
type CreateFolderDTO struct {
	Name           string  `json:"name" validate:"required,min=1,max=255"`
	ParentPublicID *string `json:"parent_id,omitempty"`
	DepartmentID   *int64  `json:"department_id,omitempty" validate:"omitempty,min=1"`
	Visibility     string  `json:"visibility" validate:"omitempty,oneof=private department shared"`
}

func (dto CreateFolderDTO) Validate() error {
	return validate.Struct(dto)
}

type RenameFolderDTO struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

func (dto RenameFolderDTO) Validate() error {
	return validate.Struct(dto)
}

// MoveFolderDTO relocates a folder. A nil parent moves it to the root.
type MoveFolderDTO struct {
	ParentPublicID *string `json:"parent_id"`
}
