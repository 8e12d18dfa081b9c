package user

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
	StatusBlocked  Status = "blocked"
)

// RoleSuperAdmin bypasses every resource-level policy. The short-circuit is
// evaluated by services before the authorization engine runs.
const RoleSuperAdmin = "SuperAdmin"

type User struct {
	ID             int64      `gorm:"primaryKey"`
	PublicID       string     `gorm:"column:public_id;uniqueIndex;not null"`
	EmployeeID     *int64     `gorm:"column:employee_id;uniqueIndex"`
	Email          *string    `gorm:"column:email;uniqueIndex"`
	PasswordHash   string     `gorm:"column:password_hash;not null"`
	Status         Status     `gorm:"column:status;default:'pending';index"`
	ApprovedBy     *int64     `gorm:"column:approved_by"`
	ApprovedAt     *time.Time `gorm:"column:approved_at"`
	RejectedBy     *int64     `gorm:"column:rejected_by"`
	RejectedAt     *time.Time `gorm:"column:rejected_at"`
	RejectedReason string     `gorm:"column:rejected_reason"`
	CreatedAt      time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
}

func (Role) TableName() string {
	return "roles"
}

type UserRole struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_role"`
	RoleID    int64     `gorm:"column:role_id;not null;uniqueIndex:idx_user_role"`
	GrantedBy *int64    `gorm:"column:granted_by"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	ID           int64     `gorm:"primaryKey"`
	RoleID       int64     `gorm:"column:role_id;not null;uniqueIndex:idx_role_permission"`
	PermissionID int64     `gorm:"column:permission_id;not null;uniqueIndex:idx_role_permission"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// PermissionSet is the capability set an actor carries for the duration of a
// request, populated once from the role assignment store.
type PermissionSet map[string]struct{}

func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (p PermissionSet) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p PermissionSet) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	return names
}
