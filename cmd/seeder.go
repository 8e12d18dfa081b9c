package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/deptfile/file-management/internal/authz"
	departmentmodel "github.com/deptfile/file-management/internal/core/datamodel/department"
	"github.com/deptfile/file-management/internal/core/datamodel/employee"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		_, db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			tables := []string{
				"audit_logs", "share_links", "file_permissions", "folder_permissions",
				"file_versions", "files", "folders", "user_roles", "role_permissions",
				"users", "employees", "roles", "permissions", "departments",
			}
			for _, table := range tables {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		permissions := []struct {
			Name string
			Desc string
		}{
			{authz.PermFilesView, "View file metadata"},
			{authz.PermFilesDownload, "Download file content"},
			{authz.PermFilesUpload, "Upload files"},
			{authz.PermFilesUpdate, "Rename and move files"},
			{authz.PermFilesDelete, "Trash files"},
			{authz.PermFilesRestore, "Restore and purge trashed files"},
			{authz.PermFoldersView, "View folders"},
			{authz.PermFoldersCreate, "Create folders"},
			{authz.PermFoldersUpdate, "Rename and move folders"},
			{authz.PermFoldersDelete, "Trash folders"},
			{authz.PermFoldersRestore, "Restore and purge trashed folders"},
			{authz.PermShareManage, "Manage permissions and share links"},
			{authz.PermUsersManage, "Approve, reject and block users"},
			{authz.PermDepartmentsManage, "Manage departments and employees"},
			{authz.PermAuditView, "Read the audit trail"},
		}
		for _, p := range permissions {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE name = ?", p.Name).Row().Scan(&pid); err != nil {
				if err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES (?, ?, now())", p.Name, p.Desc).Error; err != nil {
					log.Fatalf("failed to insert permission %s: %v", p.Name, err)
				}
			}
		}
		fmt.Println("Seeded permissions")

		memberPerms := []string{
			authz.PermFilesView, authz.PermFilesDownload, authz.PermFilesUpload,
			authz.PermFilesUpdate, authz.PermFilesDelete,
			authz.PermFoldersView, authz.PermFoldersCreate, authz.PermFoldersUpdate,
			authz.PermShareManage,
		}
		managerPerms := append(memberPerms,
			authz.PermFilesRestore, authz.PermFoldersDelete, authz.PermFoldersRestore,
			authz.PermUsersManage, authz.PermAuditView)

		roles := map[string][]string{
			usermodel.RoleSuperAdmin: nil,
			"Manager":                managerPerms,
			"Member":                 memberPerms,
		}
		for name, perms := range roles {
			var rid int64
			if err := db.Raw("SELECT id FROM roles WHERE name = ?", name).Row().Scan(&rid); err != nil {
				if err := db.Exec("INSERT INTO roles (name, created_at) VALUES (?, now())", name).Error; err != nil {
					log.Fatalf("failed to insert role %s: %v", name, err)
				}
				if err := db.Raw("SELECT id FROM roles WHERE name = ?", name).Row().Scan(&rid); err != nil {
					log.Fatalf("role not found after insert %s: %v", name, err)
				}
			}
			for _, permName := range perms {
				var pid int64
				if err := db.Raw("SELECT id FROM permissions WHERE name = ?", permName).Row().Scan(&pid); err != nil {
					log.Fatalf("permission not found %s: %v", permName, err)
				}
				var exists int
				if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", rid, pid).Row().Scan(&exists); err == nil {
					continue
				}
				if err := db.Exec("INSERT INTO role_permissions (role_id, permission_id, created_at) VALUES (?, ?, now())", rid, pid).Error; err != nil {
					log.Fatalf("failed to grant %s to role %s: %v", permName, name, err)
				}
			}
		}
		fmt.Println("Seeded roles")

		dept := departmentmodel.Department{
			PublicID: uuid.NewString(), Name: "General Affairs", Code: "GA",
			IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		var deptID int64
		if err := db.Raw("SELECT id FROM departments WHERE code = ?", dept.Code).Row().Scan(&deptID); err != nil {
			if err := db.Create(&dept).Error; err != nil {
				log.Fatalf("failed to insert department: %v", err)
			}
			deptID = dept.ID
			fmt.Println("Seeded department:", dept.Code)
		}

		adminEmployee := employee.Employee{
			PublicID: uuid.NewString(), EmployeeNo: "GA-0001", DepartmentID: deptID,
			Position: "Administrator", FirstName: "System", LastName: "Admin",
			Status: employee.StatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		var adminEmployeeID int64
		if err := db.Raw("SELECT id FROM employees WHERE employee_no = ?", adminEmployee.EmployeeNo).Row().Scan(&adminEmployeeID); err != nil {
			if err := db.Create(&adminEmployee).Error; err != nil {
				log.Fatalf("failed to insert admin employee: %v", err)
			}
			adminEmployeeID = adminEmployee.ID
		}

		adminEmail := "admin@example.com"
		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), cfg.Security.BCryptCost)
		var adminUserID int64
		if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&adminUserID); err != nil {
			admin := usermodel.User{
				PublicID: uuid.NewString(), EmployeeID: &adminEmployeeID, Email: &adminEmail,
				PasswordHash: string(hash), Status: usermodel.StatusActive,
				CreatedAt: time.Now(), UpdatedAt: time.Now(),
			}
			if err := db.Create(&admin).Error; err != nil {
				log.Fatalf("failed to insert admin user: %v", err)
			}
			adminUserID = admin.ID
			fmt.Println("Seeded admin user:", adminEmail)
		}

		var superAdminRoleID int64
		if err := db.Raw("SELECT id FROM roles WHERE name = ?", usermodel.RoleSuperAdmin).Row().Scan(&superAdminRoleID); err != nil {
			log.Fatalf("super admin role missing: %v", err)
		}
		var exists int
		if err := db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?", adminUserID, superAdminRoleID).Row().Scan(&exists); err != nil {
			if err := db.Exec("INSERT INTO user_roles (user_id, role_id, created_at) VALUES (?, ?, now())", adminUserID, superAdminRoleID).Error; err != nil {
				log.Fatalf("failed to grant super admin role: %v", err)
			}
		}

		fmt.Println("Seeding complete")
	},
}
