package auth

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

// Repository interface defines the data access methods for authentication
type Repository interface {
	UserByEmail(ctx context.Context, email string) (*usermodel.User, error)
	UserByID(ctx context.Context, id int64) (*usermodel.User, error)
	EmployeeByID(ctx context.Context, id int64) (*employee.Employee, error)
	RoleNames(ctx context.Context, userID int64) ([]string, error)
	PermissionNames(ctx context.Context, userID int64) ([]string, error)
}

// Service handles authentication and session resolution
type Service struct {
	repo     Repository
	tokenGen TokenGenerator
	audits   *audit.Service
	logger   *slog.Logger
}

func NewService(repo Repository, tokenGen TokenGenerator, audits *audit.Service, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		tokenGen: tokenGen,
		audits:   audits,
		logger:   logger,
	}
}

// Authenticate validates credentials and returns a token pair. Only users
// that are approved AND linked to an active employee may log in.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.repo.UserByEmail(ctx, dto.Email)
	if err != nil {
		return AuthTokens{}, err
	}
	if u == nil {
		// burn the same time as a real comparison would
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidsaltinvalidsaltinvalidsaltinvalid"), []byte(dto.Password))
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := s.checkActive(ctx, u); err != nil {
		return AuthTokens{}, err
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(u.ID)
	if err != nil {
		return AuthTokens{}, err
	}
	refreshToken, err := s.tokenGen.GenerateRefreshToken(u.ID)
	if err != nil {
		return AuthTokens{}, err
	}

	s.audits.Log(ctx, &u.ID, auditmodel.ActionUserLoggedIn, "user", &u.ID, nil)

	return AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshTokens exchanges a valid refresh token for a new pair. The user's
// status is re-checked so a block takes effect at the next refresh at the
// latest.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGen.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	u, err := s.repo.UserByID(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, err
	}
	if u == nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}
	if err := s.checkActive(ctx, u); err != nil {
		return AuthTokens{}, err
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(u.ID)
	if err != nil {
		return AuthTokens{}, err
	}
	newRefreshToken, err := s.tokenGen.GenerateRefreshToken(u.ID)
	if err != nil {
		return AuthTokens{}, err
	}
	return AuthTokens{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

func (s *Service) checkActive(ctx context.Context, u *usermodel.User) error {
	switch u.Status {
	case usermodel.StatusActive:
	case usermodel.StatusPending:
		return internal.ErrUserNotApproved
	default:
		return internal.ErrUserInactive
	}

	if u.EmployeeID != nil {
		emp, err := s.repo.EmployeeByID(ctx, *u.EmployeeID)
		if err != nil {
			return err
		}
		if emp == nil || !emp.IsActive() {
			return internal.ErrUserInactive
		}
	}
	return nil
}

// ResolveSession turns an access token into the request-scoped session the
// handlers and services work with.
func (s *Service) ResolveSession(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.tokenGen.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.UserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, internal.ErrInvalidToken
	}
	if err := s.checkActive(ctx, u); err != nil {
		return nil, err
	}

	session := &Session{
		UserID:   u.ID,
		PublicID: u.PublicID,
	}
	if u.Email != nil {
		session.Email = *u.Email
	}

	if u.EmployeeID != nil {
		emp, err := s.repo.EmployeeByID(ctx, *u.EmployeeID)
		if err != nil {
			return nil, err
		}
		if emp != nil {
			session.DepartmentID = &emp.DepartmentID
		}
	}

	roles, err := s.repo.RoleNames(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	session.Roles = roles

	perms, err := s.repo.PermissionNames(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	session.Perms = usermodel.NewPermissionSet(perms...)

	return session, nil
}
