package department

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	departmentmodel "github.com/deptfile/file-management/internal/core/datamodel/department"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
)

type Repository interface {
	CreateDepartment(ctx context.Context, d *departmentmodel.Department) error
	DepartmentByPublicID(ctx context.Context, publicID string) (*departmentmodel.Department, error)
	DepartmentByCode(ctx context.Context, code string) (*departmentmodel.Department, error)
	UpdateDepartment(ctx context.Context, d *departmentmodel.Department) error
	ListDepartments(ctx context.Context, activeOnly bool) ([]*departmentmodel.Department, error)

	CreateEmployee(ctx context.Context, e *employee.Employee) error
	EmployeeByPublicID(ctx context.Context, publicID string) (*employee.Employee, error)
	EmployeeByNo(ctx context.Context, employeeNo string) (*employee.Employee, error)
	UpdateEmployee(ctx context.Context, e *employee.Employee) error
	ListEmployees(ctx context.Context, departmentID int64, limit, offset int) ([]*employee.Employee, error)
}

type Service struct {
	repo   Repository
	audits *audit.Service
	logger *slog.Logger
}

func NewService(repo Repository, audits *audit.Service, logger *slog.Logger) *Service {
	return &Service{repo: repo, audits: audits, logger: logger}
}

func (s *Service) CreateDepartment(ctx context.Context, actorID int64, dto CreateDepartmentDTO) (*departmentmodel.Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	existing, err := s.repo.DepartmentByCode(ctx, dto.Code)
	if err != nil {
		s.logger.Error("failed to look up department code", "error", err, "code", dto.Code)
		return nil, internal.ErrInternalServer
	}
	if existing != nil {
		return nil, internal.NewConflictError("Department code is already in use", internal.ErrCodeDepartmentInUse)
	}

	d := &departmentmodel.Department{
		PublicID:  uuid.NewString(),
		Name:      dto.Name,
		Code:      dto.Code,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.CreateDepartment(ctx, d); err != nil {
		s.logger.Error("failed to create department", "error", err, "code", dto.Code)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionDepartmentCreated, "department", &d.ID, map[string]any{
		"code": d.Code,
		"name": d.Name,
	})
	return d, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, actorID int64, publicID string, dto UpdateDepartmentDTO) (*departmentmodel.Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	d, err := s.loadDepartment(ctx, publicID)
	if err != nil {
		return nil, err
	}

	deactivated := false
	if dto.Name != nil {
		d.Name = *dto.Name
	}
	if dto.IsActive != nil {
		deactivated = d.IsActive && !*dto.IsActive
		d.IsActive = *dto.IsActive
	}
	d.UpdatedAt = time.Now()
	if err := s.repo.UpdateDepartment(ctx, d); err != nil {
		s.logger.Error("failed to update department", "error", err, "department_id", d.ID)
		return nil, internal.ErrInternalServer
	}

	action := auditmodel.ActionDepartmentUpdated
	if deactivated {
		action = auditmodel.ActionDepartmentDisabled
	}
	s.audits.Log(ctx, &actorID, action, "department", &d.ID, nil)
	return d, nil
}

func (s *Service) GetDepartment(ctx context.Context, publicID string) (*departmentmodel.Department, error) {
	return s.loadDepartment(ctx, publicID)
}

func (s *Service) ListDepartments(ctx context.Context, activeOnly bool) ([]*departmentmodel.Department, error) {
	out, err := s.repo.ListDepartments(ctx, activeOnly)
	if err != nil {
		s.logger.Error("failed to list departments", "error", err)
		return nil, internal.ErrInternalServer
	}
	return out, nil
}

func (s *Service) CreateEmployee(ctx context.Context, actorID int64, departmentPublicID string, dto CreateEmployeeDTO) (*employee.Employee, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	d, err := s.loadDepartment(ctx, departmentPublicID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, internal.NewUnprocessableError("Department is disabled", internal.ErrCodeDepartmentInUse)
	}

	existing, err := s.repo.EmployeeByNo(ctx, dto.EmployeeNo)
	if err != nil {
		return nil, internal.ErrInternalServer
	}
	if existing != nil {
		return nil, internal.NewConflictError("Employee number is already in use", internal.ErrCodeEmployeeClaimed)
	}

	e := &employee.Employee{
		PublicID:     uuid.NewString(),
		EmployeeNo:   dto.EmployeeNo,
		DepartmentID: d.ID,
		Position:     dto.Position,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Email:        dto.Email,
		Phone:        dto.Phone,
		Status:       employee.StatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repo.CreateEmployee(ctx, e); err != nil {
		s.logger.Error("failed to create employee", "error", err, "employee_no", dto.EmployeeNo)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionEmployeeCreated, "employee", &e.ID, map[string]any{
		"employee_no":   e.EmployeeNo,
		"department_id": d.ID,
	})
	return e, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, actorID int64, publicID string, dto UpdateEmployeeDTO) (*employee.Employee, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	e, err := s.loadEmployee(ctx, publicID)
	if err != nil {
		return nil, err
	}

	if dto.FirstName != nil {
		e.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		e.LastName = *dto.LastName
	}
	if dto.Position != nil {
		e.Position = *dto.Position
	}
	if dto.Email != nil {
		e.Email = *dto.Email
	}
	if dto.Phone != nil {
		e.Phone = *dto.Phone
	}
	e.UpdatedAt = time.Now()
	if err := s.repo.UpdateEmployee(ctx, e); err != nil {
		s.logger.Error("failed to update employee", "error", err, "employee_id", e.ID)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionEmployeeUpdated, "employee", &e.ID, nil)
	return e, nil
}

// ChangeEmployeeStatus moves an employee between active, inactive and
// resigned. A non-active employee locks out the linked user account on the
// next token resolution; no explicit user-row change is needed.
func (s *Service) ChangeEmployeeStatus(ctx context.Context, actorID int64, publicID string, dto ChangeEmployeeStatusDTO) (*employee.Employee, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	e, err := s.loadEmployee(ctx, publicID)
	if err != nil {
		return nil, err
	}

	from := e.Status
	e.Status = employee.Status(dto.Status)
	e.UpdatedAt = time.Now()
	if err := s.repo.UpdateEmployee(ctx, e); err != nil {
		s.logger.Error("failed to change employee status", "error", err, "employee_id", e.ID)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionEmployeeStatusChanged, "employee", &e.ID, map[string]any{
		"from": string(from),
		"to":   dto.Status,
	})
	return e, nil
}

func (s *Service) GetEmployee(ctx context.Context, publicID string) (*employee.Employee, error) {
	return s.loadEmployee(ctx, publicID)
}

func (s *Service) ListEmployees(ctx context.Context, departmentPublicID string, limit, offset int) ([]*employee.Employee, error) {
	d, err := s.loadDepartment(ctx, departmentPublicID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := s.repo.ListEmployees(ctx, d.ID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list employees", "error", err, "department_id", d.ID)
		return nil, internal.ErrInternalServer
	}
	return out, nil
}

func (s *Service) loadDepartment(ctx context.Context, publicID string) (*departmentmodel.Department, error) {
	d, err := s.repo.DepartmentByPublicID(ctx, publicID)
	if err != nil {
		s.logger.Error("failed to load department", "error", err, "public_id", publicID)
		return nil, internal.ErrInternalServer
	}
	if d == nil {
		return nil, internal.ErrDepartmentNotFound
	}
	return d, nil
}

func (s *Service) loadEmployee(ctx context.Context, publicID string) (*employee.Employee, error) {
	e, err := s.repo.EmployeeByPublicID(ctx, publicID)
	if err != nil {
		s.logger.Error("failed to load employee", "error", err, "public_id", publicID)
		return nil, internal.ErrInternalServer
	}
	if e == nil {
		return nil, internal.ErrEmployeeNotFound
	}
	return e, nil
}
