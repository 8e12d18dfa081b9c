package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

type Repository interface {
	Create(ctx context.Context, u *usermodel.User) error
	ByID(ctx context.Context, id int64) (*usermodel.User, error)
	ByPublicID(ctx context.Context, publicID string) (*usermodel.User, error)
	ByEmail(ctx context.Context, email string) (*usermodel.User, error)
	ByEmployeeID(ctx context.Context, employeeID int64) (*usermodel.User, error)
	Update(ctx context.Context, u *usermodel.User) error
	ListByStatus(ctx context.Context, status usermodel.Status, limit, offset int) ([]*usermodel.User, error)

	EmployeeByNo(ctx context.Context, employeeNo string) (*employee.Employee, error)
	RoleByName(ctx context.Context, name string) (*usermodel.Role, error)
	AssignRole(ctx context.Context, userID, roleID int64, grantedBy *int64) error
}

type Service struct {
	repo       Repository
	audits     *audit.Service
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, audits *audit.Service, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, audits: audits, bcryptCost: bcryptCost, logger: logger}
}

// Register claims an employee row by its employee number. The account starts
// pending and stays unusable until an administrator approves it.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*usermodel.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	emp, err := s.repo.EmployeeByNo(ctx, dto.EmployeeNo)
	if err != nil {
		s.logger.Error("failed to look up employee", "error", err, "employee_no", dto.EmployeeNo)
		return nil, internal.ErrInternalServer
	}
	if emp == nil {
		return nil, internal.ErrEmployeeNotFound
	}
	if !emp.IsActive() {
		return nil, internal.ErrEmployeeInactive
	}

	existing, err := s.repo.ByEmployeeID(ctx, emp.ID)
	if err != nil {
		return nil, internal.ErrInternalServer
	}
	if existing != nil {
		return nil, internal.ErrEmployeeClaimed
	}

	byEmail, err := s.repo.ByEmail(ctx, dto.Email)
	if err != nil {
		return nil, internal.ErrInternalServer
	}
	if byEmail != nil {
		return nil, internal.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, internal.ErrInternalServer
	}

	email := dto.Email
	u := &usermodel.User{
		PublicID:     uuid.NewString(),
		EmployeeID:   &emp.ID,
		Email:        &email,
		PasswordHash: string(hash),
		Status:       usermodel.StatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "error", err, "employee_no", dto.EmployeeNo)
		return nil, internal.ErrEmployeeClaimed
	}

	s.audits.Log(ctx, nil, auditmodel.ActionUserRegistered, "user", &u.ID, map[string]any{
		"employee_no": emp.EmployeeNo,
		"email":       dto.Email,
	})
	return u, nil
}

func (s *Service) Approve(ctx context.Context, actorID int64, publicID string) (*usermodel.User, error) {
	u, err := s.load(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if u.Status == usermodel.StatusActive {
		return u, nil
	}
	if u.Status != usermodel.StatusPending {
		return nil, internal.NewConflictError(
			fmt.Sprintf("Cannot approve a user in status %q", u.Status), internal.ErrCodeInvalidStatus)
	}

	now := time.Now()
	u.Status = usermodel.StatusActive
	u.ApprovedBy = &actorID
	u.ApprovedAt = &now
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		s.logger.Error("failed to approve user", "error", err, "user_id", u.ID)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionUserApproved, "user", &u.ID, nil)
	return u, nil
}

func (s *Service) Reject(ctx context.Context, actorID int64, publicID string, dto RejectDTO) (*usermodel.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	u, err := s.load(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if u.Status != usermodel.StatusPending {
		return nil, internal.NewConflictError(
			fmt.Sprintf("Cannot reject a user in status %q", u.Status), internal.ErrCodeInvalidStatus)
	}

	now := time.Now()
	u.Status = usermodel.StatusRejected
	u.RejectedBy = &actorID
	u.RejectedAt = &now
	u.RejectedReason = dto.Reason
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		s.logger.Error("failed to reject user", "error", err, "user_id", u.ID)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionUserRejected, "user", &u.ID, map[string]any{
		"reason": dto.Reason,
	})
	return u, nil
}

func (s *Service) Block(ctx context.Context, actorID int64, publicID string) (*usermodel.User, error) {
	u, err := s.load(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if u.ID == actorID {
		return nil, internal.NewUnprocessableError("Cannot block your own account", internal.ErrCodeSelfBlock)
	}
	if u.Status == usermodel.StatusBlocked {
		return u, nil
	}

	u.Status = usermodel.StatusBlocked
	u.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		s.logger.Error("failed to block user", "error", err, "user_id", u.ID)
		return nil, internal.ErrInternalServer
	}

	s.audits.Log(ctx, &actorID, auditmodel.ActionUserBlocked, "user", &u.ID, nil)
	return u, nil
}

func (s *Service) AssignRole(ctx context.Context, actorID int64, publicID string, dto AssignRoleDTO) error {
	if err := dto.Validate(); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	u, err := s.load(ctx, publicID)
	if err != nil {
		return err
	}
	role, err := s.repo.RoleByName(ctx, dto.RoleName)
	if err != nil {
		return internal.ErrInternalServer
	}
	if role == nil {
		return internal.ErrRoleNotFound
	}
	if err := s.repo.AssignRole(ctx, u.ID, role.ID, &actorID); err != nil {
		s.logger.Error("failed to assign role", "error", err, "user_id", u.ID, "role", role.Name)
		return internal.ErrInternalServer
	}
	return nil
}

func (s *Service) Get(ctx context.Context, publicID string) (*usermodel.User, error) {
	return s.load(ctx, publicID)
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*usermodel.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	users, err := s.repo.ListByStatus(ctx, usermodel.StatusPending, limit, offset)
	if err != nil {
		s.logger.Error("failed to list pending users", "error", err)
		return nil, internal.ErrInternalServer
	}
	return users, nil
}

func (s *Service) load(ctx context.Context, publicID string) (*usermodel.User, error) {
	u, err := s.repo.ByPublicID(ctx, publicID)
	if err != nil {
		s.logger.Error("failed to load user", "error", err, "public_id", publicID)
		return nil, internal.ErrInternalServer
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}
