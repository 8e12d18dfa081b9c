package department

import (
	"time"

	"github.com/go-playground/validator/v10"

	departmentmodel "github.com/deptfile/file-management/internal/core/datamodel/department"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
)

var validate = validator.New()

type CreateDepartmentDTO struct {
	Name string `json:"name" validate:"required,max=150"`
	Code string `json:"code" validate:"required,max=20,alphanum"`
}

func (d CreateDepartmentDTO) Validate() error {
	return validate.Struct(d)
}

type UpdateDepartmentDTO struct {
	Name     *string `json:"name" validate:"omitempty,max=150"`
	IsActive *bool   `json:"is_active"`
}

func (d UpdateDepartmentDTO) Validate() error {
	return validate.Struct(d)
}

type CreateEmployeeDTO struct {
	EmployeeNo string `json:"employee_no" validate:"required,max=30"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"max=100"`
	Position   string `json:"position" validate:"max=100"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=30"`
}

func (d CreateEmployeeDTO) Validate() error {
	return validate.Struct(d)
}

type UpdateEmployeeDTO struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Position  *string `json:"position" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
}

func (d UpdateEmployeeDTO) Validate() error {
	return validate.Struct(d)
}

type ChangeEmployeeStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=active inactive resigned"`
}

func (d ChangeEmployeeStatusDTO) Validate() error {
	return validate.Struct(d)
}

type DepartmentResponse struct {
	PublicID  string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func ToDepartmentResponse(d *departmentmodel.Department) DepartmentResponse {
	return DepartmentResponse{
		PublicID:  d.PublicID,
		Name:      d.Name,
		Code:      d.Code,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
	}
}

type EmployeeResponse struct {
	PublicID   string `json:"id"`
	EmployeeNo string `json:"employee_no"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Position   string `json:"position,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Status     string `json:"status"`
}

func ToEmployeeResponse(e *employee.Employee) EmployeeResponse {
	return EmployeeResponse{
		PublicID:   e.PublicID,
		EmployeeNo: e.EmployeeNo,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Position:   e.Position,
		Email:      e.Email,
		Phone:      e.Phone,
		Status:     string(e.Status),
	}
}
