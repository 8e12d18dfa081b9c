package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/deptfile/file-management/internal/audit"
	"github.com/deptfile/file-management/internal/auth"
	"github.com/deptfile/file-management/internal/authz"
	"github.com/deptfile/file-management/internal/department"
	"github.com/deptfile/file-management/internal/file"
	"github.com/deptfile/file-management/internal/folder"
	"github.com/deptfile/file-management/internal/idempotency"
	"github.com/deptfile/file-management/internal/sharing"
	"github.com/deptfile/file-management/internal/transport"
	"github.com/deptfile/file-management/internal/transport/middleware"
	"github.com/deptfile/file-management/internal/transport/swagger"
	"github.com/deptfile/file-management/internal/user"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth       *auth.Handler
	User       *user.Handler
	Department *department.Handler
	Folder     *folder.Handler
	File       *file.Handler
	Sharing    *sharing.Handler
	Audit      *audit.Handler
}

// RegisterAllRoutes mounts the full API. Every mutating route sits behind the
// idempotency guard with its own scope; admin routes additionally require the
// matching coarse permission.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, storage StorageChecker, handlers Handlers, authService *auth.Service, guard *idempotency.Guard, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, storage)
	base := transport.NewBaseHandler(logger)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestMeta)
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", handlers.Auth.Login)
			sr.Post("/refresh", handlers.Auth.RefreshToken)
		})

		// Registration is public; the account stays pending until approved.
		r.With(guard.Wrap("register-user")).Post("/users/register", handlers.User.Register)

		// Tokenized share links, no session required.
		r.Route("/share/{token}", func(sr chi.Router) {
			sr.Get("/", handlers.Sharing.ResolveShareLink)
			sr.Get("/download", handlers.File.DownloadShared)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(authService, base))

			pr.Get("/auth/me", handlers.Auth.Me)

			pr.Route("/users", func(ur chi.Router) {
				ur.Group(func(ar chi.Router) {
					ar.Use(auth.RequirePermission(base, authz.PermUsersManage))
					ar.Get("/pending", handlers.User.ListPending)
					ar.Get("/{userID}", handlers.User.Get)
					ar.With(guard.Wrap("approve-user")).Post("/{userID}/approve", handlers.User.Approve)
					ar.With(guard.Wrap("reject-user")).Post("/{userID}/reject", handlers.User.Reject)
					ar.With(guard.Wrap("block-user")).Post("/{userID}/block", handlers.User.Block)
					ar.With(guard.Wrap("assign-role")).Post("/{userID}/roles", handlers.User.AssignRole)
				})
			})

			pr.Route("/departments", func(dr chi.Router) {
				dr.Get("/", handlers.Department.ListDepartments)
				dr.Get("/{departmentID}", handlers.Department.GetDepartment)
				dr.Get("/{departmentID}/employees", handlers.Department.ListEmployees)

				dr.Group(func(ar chi.Router) {
					ar.Use(auth.RequirePermission(base, authz.PermDepartmentsManage))
					ar.With(guard.Wrap("create-department")).Post("/", handlers.Department.CreateDepartment)
					ar.With(guard.Wrap("update-department")).Patch("/{departmentID}", handlers.Department.UpdateDepartment)
					ar.With(guard.Wrap("create-employee")).Post("/{departmentID}/employees", handlers.Department.CreateEmployee)
				})
			})

			pr.Route("/employees/{employeeID}", func(er chi.Router) {
				er.Get("/", handlers.Department.GetEmployee)

				er.Group(func(ar chi.Router) {
					ar.Use(auth.RequirePermission(base, authz.PermDepartmentsManage))
					ar.With(guard.Wrap("update-employee")).Patch("/", handlers.Department.UpdateEmployee)
					ar.With(guard.Wrap("change-employee-status")).Patch("/status", handlers.Department.ChangeEmployeeStatus)
				})
			})

			pr.Route("/folders", func(fr chi.Router) {
				fr.Get("/", handlers.Folder.ListRoots)
				fr.With(guard.Wrap("create-folder")).Post("/", handlers.Folder.Create)

				fr.Route("/{folderID}", func(sr chi.Router) {
					sr.Get("/", handlers.Folder.Get)
					sr.Get("/children", handlers.Folder.ListChildren)
					sr.With(guard.Wrap("rename-folder")).Patch("/rename", handlers.Folder.Rename)
					sr.With(guard.Wrap("move-folder")).Patch("/move", handlers.Folder.Move)
					sr.With(guard.Wrap("trash-folder")).Delete("/", handlers.Folder.Trash)
					sr.With(guard.Wrap("restore-folder")).Post("/restore", handlers.Folder.Restore)
					sr.With(guard.Wrap("purge-folder")).Delete("/purge", handlers.Folder.Purge)

					sr.With(guard.Wrap("upload-file")).Post("/files", handlers.File.Upload)

					sr.With(guard.Wrap("grant-folder-permission")).Post("/permissions", handlers.Sharing.GrantFolderPermission)
					sr.With(guard.Wrap("grant-folder-department")).Post("/permissions/department", handlers.Sharing.GrantFolderToDepartment)
					sr.With(guard.Wrap("revoke-folder-permission")).Delete("/permissions/{userID}", handlers.Sharing.RevokeFolderPermission)
				})
			})

			pr.Route("/files/{fileID}", func(fr chi.Router) {
				fr.Get("/", handlers.File.Get)
				fr.Get("/download", handlers.File.Download)
				fr.With(guard.Wrap("rename-file")).Patch("/rename", handlers.File.Rename)
				fr.With(guard.Wrap("move-file")).Patch("/move", handlers.File.Move)
				fr.With(guard.Wrap("trash-file")).Delete("/", handlers.File.Trash)
				fr.With(guard.Wrap("restore-file")).Post("/restore", handlers.File.Restore)
				fr.With(guard.Wrap("purge-file")).Delete("/purge", handlers.File.Purge)

				fr.Get("/versions", handlers.File.ListVersions)
				fr.With(guard.Wrap("upload-version")).Post("/versions", handlers.File.UploadVersion)
				fr.Get("/versions/{versionNo}/download", handlers.File.DownloadVersion)

				fr.With(guard.Wrap("grant-file-permission")).Post("/permissions", handlers.Sharing.GrantFilePermission)
				fr.With(guard.Wrap("revoke-file-permission")).Delete("/permissions/{userID}", handlers.Sharing.RevokeFilePermission)

				fr.Get("/shares", handlers.Sharing.ListShareLinks)
				fr.With(guard.Wrap("create-share-link")).Post("/shares", handlers.Sharing.CreateShareLink)
			})

			pr.With(guard.Wrap("revoke-share-link")).Delete("/shares/{linkID}", handlers.Sharing.RevokeShareLink)

			pr.With(auth.RequirePermission(base, authz.PermAuditView)).Get("/audit", handlers.Audit.List)
		})
	})
}
