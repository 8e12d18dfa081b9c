package user_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
	"github.com/deptfile/file-management/internal/user"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

type roleAssignment struct {
	userID, roleID int64
}

type memRepo struct {
	nextID    int64
	users     map[int64]*usermodel.User
	employees map[string]*employee.Employee
	roles     map[string]*usermodel.Role
	assigned  []roleAssignment
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:     make(map[int64]*usermodel.User),
		employees: make(map[string]*employee.Employee),
		roles:     make(map[string]*usermodel.Role),
	}
}

func (r *memRepo) Create(_ context.Context, u *usermodel.User) error {
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	return nil
}

func (r *memRepo) ByID(_ context.Context, id int64) (*usermodel.User, error) {
	return r.users[id], nil
}

func (r *memRepo) ByPublicID(_ context.Context, publicID string) (*usermodel.User, error) {
	for _, u := range r.users {
		if u.PublicID == publicID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ByEmail(_ context.Context, email string) (*usermodel.User, error) {
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ByEmployeeID(_ context.Context, employeeID int64) (*usermodel.User, error) {
	for _, u := range r.users {
		if u.EmployeeID != nil && *u.EmployeeID == employeeID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memRepo) Update(_ context.Context, u *usermodel.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memRepo) ListByStatus(_ context.Context, status usermodel.Status, _, _ int) ([]*usermodel.User, error) {
	var out []*usermodel.User
	for _, u := range r.users {
		if u.Status == status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memRepo) EmployeeByNo(_ context.Context, employeeNo string) (*employee.Employee, error) {
	return r.employees[employeeNo], nil
}

func (r *memRepo) RoleByName(_ context.Context, name string) (*usermodel.Role, error) {
	return r.roles[name], nil
}

func (r *memRepo) AssignRole(_ context.Context, userID, roleID int64, _ *int64) error {
	r.assigned = append(r.assigned, roleAssignment{userID: userID, roleID: roleID})
	return nil
}

type memAuditRepo struct {
	entries []*auditmodel.Log
}

func (r *memAuditRepo) Append(_ context.Context, entry *auditmodel.Log) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, _ audit.ListFilter) ([]*auditmodel.Log, error) {
	return r.entries, nil
}

func (r *memAuditRepo) actions() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

var _ = Describe("User service", func() {
	var (
		ctx      context.Context
		repo     *memRepo
		audits   *memAuditRepo
		svc      *user.Service
		register user.RegisterDTO
	)

	const adminID int64 = 99

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMemRepo()
		audits = &memAuditRepo{}

		repo.employees["E100"] = &employee.Employee{
			ID: 100, EmployeeNo: "E100", DepartmentID: 7, FirstName: "Alice", Status: employee.StatusActive,
		}
		repo.employees["E200"] = &employee.Employee{
			ID: 200, EmployeeNo: "E200", DepartmentID: 7, FirstName: "Bob", Status: employee.StatusResigned,
		}

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc = user.NewService(repo, audit.NewService(audits, logger), bcrypt.MinCost, logger)

		register = user.RegisterDTO{
			EmployeeNo: "E100",
			Email:      "alice@example.com",
			Password:   "hunter2hunter2",
		}
	})

	Describe("Register", func() {
		It("creates a pending account linked to the employee", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Status).To(Equal(usermodel.StatusPending))
			Expect(u.EmployeeID).To(HaveValue(Equal(int64(100))))
			Expect(u.PublicID).NotTo(BeEmpty())
			Expect(u.PasswordHash).NotTo(Equal(register.Password))
			Expect(audits.actions()).To(ConsistOf(auditmodel.ActionUserRegistered))
		})

		It("rejects an unknown employee number", func() {
			register.EmployeeNo = "E999"
			_, err := svc.Register(ctx, register)
			Expect(err).To(MatchError(internal.ErrEmployeeNotFound))
		})

		It("rejects a resigned employee", func() {
			register.EmployeeNo = "E200"
			_, err := svc.Register(ctx, register)
			Expect(err).To(MatchError(internal.ErrEmployeeInactive))
		})

		It("rejects a second claim on the same employee", func() {
			_, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			register.Email = "alice2@example.com"
			_, err = svc.Register(ctx, register)
			Expect(err).To(MatchError(internal.ErrEmployeeClaimed))
			Expect(repo.users).To(HaveLen(1))
		})

		It("rejects a duplicate email", func() {
			_, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			second := user.RegisterDTO{EmployeeNo: "E200", Email: register.Email, Password: register.Password}
			repo.employees["E200"].Status = employee.StatusActive
			_, err = svc.Register(ctx, second)
			Expect(err).To(MatchError(internal.ErrEmailTaken))
		})

		It("rejects a short password before touching the store", func() {
			register.Password = "short"
			_, err := svc.Register(ctx, register)
			Expect(err).To(HaveOccurred())
			Expect(repo.users).To(BeEmpty())
		})
	})

	Describe("Approve", func() {
		It("activates a pending account and records the approver", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			approved, err := svc.Approve(ctx, adminID, u.PublicID)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(usermodel.StatusActive))
			Expect(approved.ApprovedBy).To(HaveValue(Equal(adminID)))
			Expect(approved.ApprovedAt).NotTo(BeNil())
			Expect(audits.actions()).To(ContainElement(auditmodel.ActionUserApproved))
		})

		It("is a no-op on an already active account", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Approve(ctx, adminID, u.PublicID)
			Expect(err).NotTo(HaveOccurred())

			before := len(audits.entries)
			again, err := svc.Approve(ctx, adminID, u.PublicID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Status).To(Equal(usermodel.StatusActive))
			Expect(audits.entries).To(HaveLen(before))
		})

		It("refuses to approve a rejected account", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Reject(ctx, adminID, u.PublicID, user.RejectDTO{Reason: "not eligible"})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Approve(ctx, adminID, u.PublicID)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Reject", func() {
		It("stores the reason and the rejecting admin", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			rejected, err := svc.Reject(ctx, adminID, u.PublicID, user.RejectDTO{Reason: "not eligible"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(usermodel.StatusRejected))
			Expect(rejected.RejectedReason).To(Equal("not eligible"))
			Expect(rejected.RejectedBy).To(HaveValue(Equal(adminID)))
			Expect(audits.actions()).To(ContainElement(auditmodel.ActionUserRejected))
		})
	})

	Describe("Block", func() {
		It("blocks an active account", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Approve(ctx, adminID, u.PublicID)
			Expect(err).NotTo(HaveOccurred())

			blocked, err := svc.Block(ctx, adminID, u.PublicID)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked.Status).To(Equal(usermodel.StatusBlocked))
			Expect(audits.actions()).To(ContainElement(auditmodel.ActionUserBlocked))
		})

		It("refuses to block the acting admin itself", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Block(ctx, u.ID, u.PublicID)
			Expect(err).To(HaveOccurred())
			Expect(repo.users[u.ID].Status).To(Equal(usermodel.StatusPending))
		})
	})

	Describe("AssignRole", func() {
		It("links the user to a known role", func() {
			repo.roles["Member"] = &usermodel.Role{ID: 3, Name: "Member"}
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			err = svc.AssignRole(ctx, adminID, u.PublicID, user.AssignRoleDTO{RoleName: "Member"})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.assigned).To(ConsistOf(roleAssignment{userID: u.ID, roleID: 3}))
		})

		It("rejects an unknown role", func() {
			u, err := svc.Register(ctx, register)
			Expect(err).NotTo(HaveOccurred())

			err = svc.AssignRole(ctx, adminID, u.PublicID, user.AssignRoleDTO{RoleName: "Ghost"})
			Expect(err).To(MatchError(internal.ErrRoleNotFound))
		})
	})
})
