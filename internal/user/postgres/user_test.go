package postgres

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/deptfile/file-management/internal/core/datamodel/employee"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

func TestUserRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "UserRepository Suite")
}

type SQLiteUser struct {
	ID             int64      `gorm:"primaryKey"`
	PublicID       string     `gorm:"column:public_id;uniqueIndex;not null"`
	EmployeeID     *int64     `gorm:"column:employee_id;uniqueIndex"`
	Email          *string    `gorm:"column:email;uniqueIndex"`
	PasswordHash   string     `gorm:"column:password_hash;not null"`
	Status         string     `gorm:"column:status;default:'pending'"`
	ApprovedBy     *int64     `gorm:"column:approved_by"`
	ApprovedAt     *time.Time `gorm:"column:approved_at"`
	RejectedBy     *int64     `gorm:"column:rejected_by"`
	RejectedAt     *time.Time `gorm:"column:rejected_at"`
	RejectedReason string     `gorm:"column:rejected_reason"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (SQLiteUser) TableName() string {
	return "users"
}

type SQLiteEmployee struct {
	ID           int64     `gorm:"primaryKey"`
	PublicID     string    `gorm:"column:public_id;uniqueIndex;not null"`
	EmployeeNo   string    `gorm:"column:employee_no;uniqueIndex;not null"`
	DepartmentID int64     `gorm:"column:department_id;not null"`
	Position     string    `gorm:"column:position"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name"`
	Email        string    `gorm:"column:email"`
	Phone        string    `gorm:"column:phone"`
	Status       string    `gorm:"column:status;default:'active'"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (SQLiteEmployee) TableName() string {
	return "employees"
}

type SQLiteRole struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (SQLiteRole) TableName() string {
	return "roles"
}

type SQLiteUserRole struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_role"`
	RoleID    int64     `gorm:"column:role_id;not null;uniqueIndex:idx_user_role"`
	GrantedBy *int64    `gorm:"column:granted_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (SQLiteUserRole) TableName() string {
	return "user_roles"
}

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo *UserRepository
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteUser{}, &SQLiteEmployee{}, &SQLiteRole{}, &SQLiteUserRole{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewUserRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	newPendingUser := func(publicID, email string, employeeID int64) *usermodel.User {
		mail := email
		empID := employeeID
		return &usermodel.User{
			PublicID:     publicID,
			EmployeeID:   &empID,
			Email:        &mail,
			PasswordHash: "hashed",
			Status:       usermodel.StatusPending,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
	}

	Describe("Create", func() {
		It("should create a user successfully", func() {
			u := newPendingUser("usr-1", "one@example.com", 10)
			err := repo.Create(ctx, u)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(BeNumerically(">", 0))
		})
	})

	Describe("ByID and ByPublicID", func() {
		var created *usermodel.User

		BeforeEach(func() {
			created = newPendingUser("usr-1", "one@example.com", 10)
			Expect(repo.Create(ctx, created)).To(Succeed())
		})

		It("should retrieve user by ID", func() {
			got, err := repo.ByID(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.PublicID).To(Equal("usr-1"))
			Expect(got.Status).To(Equal(usermodel.StatusPending))
		})

		It("should retrieve user by public ID", func() {
			got, err := repo.ByPublicID(ctx, "usr-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ID).To(Equal(created.ID))
		})

		It("should return nil for non-existent ID", func() {
			got, err := repo.ByID(ctx, 99999)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("should return nil for unknown public ID", func() {
			got, err := repo.ByPublicID(ctx, "usr-missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("ByEmail and ByEmployeeID", func() {
		BeforeEach(func() {
			Expect(repo.Create(ctx, newPendingUser("usr-1", "one@example.com", 10))).To(Succeed())
		})

		It("should find the user by email", func() {
			got, err := repo.ByEmail(ctx, "one@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.PublicID).To(Equal("usr-1"))
		})

		It("should find the user claiming an employee record", func() {
			got, err := repo.ByEmployeeID(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.PublicID).To(Equal("usr-1"))
		})

		It("should return nil for an unclaimed employee record", func() {
			got, err := repo.ByEmployeeID(ctx, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("Update", func() {
		It("should persist an approval", func() {
			created := newPendingUser("usr-1", "one@example.com", 10)
			Expect(repo.Create(ctx, created)).To(Succeed())

			approver := int64(99)
			now := time.Now()
			created.Status = usermodel.StatusActive
			created.ApprovedBy = &approver
			created.ApprovedAt = &now

			err := repo.Update(ctx, created)
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.ByID(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(usermodel.StatusActive))
			Expect(got.ApprovedBy).NotTo(BeNil())
			Expect(*got.ApprovedBy).To(Equal(int64(99)))
		})
	})

	Describe("ListByStatus", func() {
		BeforeEach(func() {
			first := newPendingUser("usr-1", "one@example.com", 10)
			first.CreatedAt = time.Now().Add(-2 * time.Hour)
			Expect(repo.Create(ctx, first)).To(Succeed())

			second := newPendingUser("usr-2", "two@example.com", 11)
			second.CreatedAt = time.Now().Add(-1 * time.Hour)
			Expect(repo.Create(ctx, second)).To(Succeed())

			active := newPendingUser("usr-3", "three@example.com", 12)
			active.Status = usermodel.StatusActive
			Expect(repo.Create(ctx, active)).To(Succeed())
		})

		It("should list pending users oldest first", func() {
			users, err := repo.ListByStatus(ctx, usermodel.StatusPending, 50, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(users[0].PublicID).To(Equal("usr-1"))
			Expect(users[1].PublicID).To(Equal("usr-2"))
		})

		It("should respect limit and offset", func() {
			users, err := repo.ListByStatus(ctx, usermodel.StatusPending, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].PublicID).To(Equal("usr-2"))
		})
	})

	Describe("EmployeeByNo", func() {
		BeforeEach(func() {
			emp := &SQLiteEmployee{
				PublicID:     "emp-1",
				EmployeeNo:   "GA-0007",
				DepartmentID: 1,
				FirstName:    "Rina",
				Status:       string(employee.StatusActive),
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
			Expect(db.Create(emp).Error).NotTo(HaveOccurred())
		})

		It("should find the employee by number", func() {
			emp, err := repo.EmployeeByNo(ctx, "GA-0007")
			Expect(err).NotTo(HaveOccurred())
			Expect(emp).NotTo(BeNil())
			Expect(emp.FirstName).To(Equal("Rina"))
			Expect(emp.IsActive()).To(BeTrue())
		})

		It("should return nil for an unknown number", func() {
			emp, err := repo.EmployeeByNo(ctx, "GA-9999")
			Expect(err).NotTo(HaveOccurred())
			Expect(emp).To(BeNil())
		})
	})

	Describe("RoleByName and AssignRole", func() {
		var role SQLiteRole

		BeforeEach(func() {
			role = SQLiteRole{Name: "Manager", Description: "department manager", CreatedAt: time.Now()}
			Expect(db.Create(&role).Error).NotTo(HaveOccurred())
		})

		It("should find the role by name", func() {
			got, err := repo.RoleByName(ctx, "Manager")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ID).To(Equal(role.ID))
		})

		It("should return nil for an unknown role", func() {
			got, err := repo.RoleByName(ctx, "Auditor")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("should assign a role once even when granted twice", func() {
			granter := int64(1)
			Expect(repo.AssignRole(ctx, 5, role.ID, &granter)).To(Succeed())
			Expect(repo.AssignRole(ctx, 5, role.ID, &granter)).To(Succeed())

			var count int64
			Expect(db.Model(&SQLiteUserRole{}).Where("user_id = ?", 5).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})
})
