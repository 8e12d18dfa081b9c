package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

var validate = validator.New()

type RegisterDTO struct {
	EmployeeNo string `json:"employee_no" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
}

func (d RegisterDTO) Validate() error {
	return validate.Struct(d)
}

type RejectDTO struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (d RejectDTO) Validate() error {
	return validate.Struct(d)
}

type AssignRoleDTO struct {
	RoleName string `json:"role_name" validate:"required"`
}

func (d AssignRoleDTO) Validate() error {
	return validate.Struct(d)
}

type UserResponse struct {
	PublicID       string     `json:"id"`
	Email          *string    `json:"email"`
	Status         string     `json:"status"`
	EmployeeID     *int64     `json:"employee_id,omitempty"`
	RejectedReason string     `json:"rejected_reason,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func ToResponse(u *usermodel.User) UserResponse {
	return UserResponse{
		PublicID:       u.PublicID,
		Email:          u.Email,
		Status:         string(u.Status),
		EmployeeID:     u.EmployeeID,
		RejectedReason: u.RejectedReason,
		ApprovedAt:     u.ApprovedAt,
		RejectedAt:     u.RejectedAt,
		CreatedAt:      u.CreatedAt,
	}
}
