package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	departmentmodel "github.com/deptfile/file-management/internal/core/datamodel/department"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) CreateDepartment(ctx context.Context, d *departmentmodel.Department) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DepartmentRepository) DepartmentByPublicID(ctx context.Context, publicID string) (*departmentmodel.Department, error) {
	var d departmentmodel.Department
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepartmentRepository) DepartmentByCode(ctx context.Context, code string) (*departmentmodel.Department, error) {
	var d departmentmodel.Department
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepartmentRepository) UpdateDepartment(ctx context.Context, d *departmentmodel.Department) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *DepartmentRepository) ListDepartments(ctx context.Context, activeOnly bool) ([]*departmentmodel.Department, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = TRUE")
	}
	var out []*departmentmodel.Department
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DepartmentRepository) CreateEmployee(ctx context.Context, e *employee.Employee) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *DepartmentRepository) EmployeeByPublicID(ctx context.Context, publicID string) (*employee.Employee, error) {
	var e employee.Employee
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *DepartmentRepository) EmployeeByNo(ctx context.Context, employeeNo string) (*employee.Employee, error) {
	var e employee.Employee
	err := r.db.WithContext(ctx).Where("employee_no = ?", employeeNo).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *DepartmentRepository) UpdateEmployee(ctx context.Context, e *employee.Employee) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *DepartmentRepository) ListEmployees(ctx context.Context, departmentID int64, limit, offset int) ([]*employee.Employee, error) {
	var out []*employee.Employee
	err := r.db.WithContext(ctx).
		Where("department_id = ?", departmentID).
		Order("employee_no ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveUserIDsInDepartment resolves the user accounts behind a department's
// active employees. Department-wide folder grants fan out to this set.
func (r *DepartmentRepository) ActiveUserIDsInDepartment(ctx context.Context, departmentID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.id").
		Joins("JOIN employees ON employees.id = users.employee_id").
		Where("employees.department_id = ?", departmentID).
		Where("employees.status = ?", employee.StatusActive).
		Where("users.status = ?", "active").
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
