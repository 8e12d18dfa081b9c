package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deptfile/file-management/internal/core/datamodel/employee"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *usermodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) ByID(ctx context.Context, id int64) (*usermodel.User, error) {
	var u usermodel.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ByPublicID(ctx context.Context, publicID string) (*usermodel.User, error) {
	var u usermodel.User
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	var u usermodel.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ByEmployeeID(ctx context.Context, employeeID int64) (*usermodel.User, error) {
	var u usermodel.User
	err := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *usermodel.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *UserRepository) ListByStatus(ctx context.Context, status usermodel.Status, limit, offset int) ([]*usermodel.User, error) {
	var users []*usermodel.User
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) EmployeeByNo(ctx context.Context, employeeNo string) (*employee.Employee, error) {
	var emp employee.Employee
	err := r.db.WithContext(ctx).Where("employee_no = ?", employeeNo).First(&emp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *UserRepository) RoleByName(ctx context.Context, name string) (*usermodel.Role, error) {
	var role usermodel.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *UserRepository) AssignRole(ctx context.Context, userID, roleID int64, grantedBy *int64) error {
	assignment := usermodel.UserRole{
		UserID:    userID,
		RoleID:    roleID,
		GrantedBy: grantedBy,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role_id"}},
			DoNothing: true,
		}).
		Create(&assignment).Error
}
