package folder_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	"github.com/deptfile/file-management/internal/authz"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/core/datamodel/permission"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
	"github.com/deptfile/file-management/internal/folder"
	"github.com/deptfile/file-management/internal/storage"
)

func TestFolder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Folder Suite")
}

type memRepo struct {
	folders map[int64]*foldermodel.Folder
	files   map[int64]*filemodel.File
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		folders: make(map[int64]*foldermodel.Folder),
		files:   make(map[int64]*filemodel.File),
	}
}

func (r *memRepo) Create(_ context.Context, fo *foldermodel.Folder) error {
	r.nextID++
	fo.ID = r.nextID
	r.folders[fo.ID] = fo
	return nil
}

func (r *memRepo) ByID(_ context.Context, id int64) (*foldermodel.Folder, error) {
	return r.folders[id], nil
}

func (r *memRepo) ByPublicID(_ context.Context, publicID string) (*foldermodel.Folder, error) {
	for _, fo := range r.folders {
		if fo.PublicID == publicID {
			return fo, nil
		}
	}
	return nil, nil
}

func (r *memRepo) Children(_ context.Context, parentID int64) ([]*foldermodel.Folder, error) {
	var out []*foldermodel.Folder
	for _, fo := range r.folders {
		if fo.ParentID != nil && *fo.ParentID == parentID {
			out = append(out, fo)
		}
	}
	return out, nil
}

func (r *memRepo) Roots(_ context.Context, ownerUserID int64, departmentID *int64) ([]*foldermodel.Folder, error) {
	var out []*foldermodel.Folder
	for _, fo := range r.folders {
		if fo.ParentID != nil {
			continue
		}
		if fo.OwnerUserID != nil && *fo.OwnerUserID == ownerUserID {
			out = append(out, fo)
			continue
		}
		if departmentID != nil && fo.DepartmentID != nil && *fo.DepartmentID == *departmentID {
			out = append(out, fo)
		}
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, fo *foldermodel.Folder) error {
	r.folders[fo.ID] = fo
	return nil
}

func (r *memRepo) SetLifecycle(_ context.Context, folderIDs []int64, lc foldermodel.Lifecycle, at *time.Time) error {
	for _, id := range folderIDs {
		if fo, ok := r.folders[id]; ok {
			fo.Lifecycle = lc
			fo.TrashedAt = at
		}
	}
	return nil
}

func (r *memRepo) SetFileLifecycle(_ context.Context, folderIDs []int64, lc filemodel.Lifecycle, at *time.Time) error {
	for _, f := range r.files {
		for _, id := range folderIDs {
			if f.FolderID == id && f.Lifecycle != filemodel.LifecyclePurged {
				f.Lifecycle = lc
				f.TrashedAt = at
			}
		}
	}
	return nil
}

func (r *memRepo) FilesInFolders(_ context.Context, folderIDs []int64) ([]*filemodel.File, error) {
	var out []*filemodel.File
	for _, f := range r.files {
		for _, id := range folderIDs {
			if f.FolderID == id {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// engineStore adapts the repo for the authorization engine. No override rows
// exist in these tests; ownership and coarse permissions drive the outcomes.
type engineStore struct {
	repo *memRepo
}

func (s *engineStore) FolderByID(_ context.Context, id int64) (*foldermodel.Folder, error) {
	return s.repo.folders[id], nil
}

func (s *engineStore) FilePermission(_ context.Context, _, _ int64) (*permission.FilePermission, error) {
	return nil, nil
}

func (s *engineStore) FolderPermissions(_ context.Context, _ []int64, _ int64) ([]*permission.FolderPermission, error) {
	return nil, nil
}

func (s *engineStore) FileHasOverrides(_ context.Context, _ int64) (bool, error) {
	return false, nil
}

func (s *engineStore) FolderSetHasOverrides(_ context.Context, _ []int64) (bool, error) {
	return false, nil
}

func ptr[T any](v T) *T { return &v }

var _ = Describe("Folder service", func() {
	var (
		ctx   context.Context
		repo  *memRepo
		svc   *folder.Service
		owner authz.Actor
	)

	ownerID := int64(10)

	seedFolder := func(publicID string, parentID *int64) *foldermodel.Folder {
		fo := &foldermodel.Folder{
			PublicID:    publicID,
			ParentID:    parentID,
			Name:        publicID,
			OwnerUserID: ptr(ownerID),
			Visibility:  foldermodel.VisibilityPrivate,
			Lifecycle:   foldermodel.LifecycleLive,
		}
		Expect(repo.Create(ctx, fo)).To(Succeed())
		return fo
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMemRepo()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		store := &engineStore{repo: repo}
		engine := authz.NewEngine(store, store, logger)
		registry := storage.NewRegistryFromBackends("primary", map[string]storage.Backend{
			"primary": noopBackend{},
		})
		svc = folder.NewService(repo, registry, engine, audit.NewService(&memAuditRepo{}, logger), logger)

		owner = authz.Actor{
			UserID: ownerID,
			Perms: usermodel.NewPermissionSet(
				authz.PermFoldersView, authz.PermFoldersCreate, authz.PermFoldersUpdate,
				authz.PermFoldersDelete, authz.PermFoldersRestore, authz.PermFilesView,
			),
		}
	})

	Describe("Create", func() {
		It("creates a personal root folder", func() {
			fo, err := svc.Create(ctx, owner, folder.CreateFolderDTO{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())
			Expect(fo.OwnerUserID).To(HaveValue(Equal(ownerID)))
			Expect(fo.DepartmentID).To(BeNil())
			Expect(fo.PublicID).NotTo(BeEmpty())
		})

		It("creates a department-scoped folder without an owner", func() {
			fo, err := svc.Create(ctx, owner, folder.CreateFolderDTO{Name: "shared", DepartmentID: ptr(int64(7))})
			Expect(err).NotTo(HaveOccurred())
			Expect(fo.OwnerUserID).To(BeNil())
			Expect(fo.DepartmentID).To(HaveValue(Equal(int64(7))))
		})

		It("refuses creation at the root without the coarse permission", func() {
			weak := authz.Actor{UserID: 20, Perms: usermodel.NewPermissionSet(authz.PermFoldersView)}
			_, err := svc.Create(ctx, weak, folder.CreateFolderDTO{Name: "docs"})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})

		It("delegates nested creation through edit on the parent", func() {
			parent := seedFolder("parent", nil)

			// the owner can always create inside their own folder
			fo, err := svc.Create(ctx, owner, folder.CreateFolderDTO{Name: "child", ParentPublicID: ptr(parent.PublicID)})
			Expect(err).NotTo(HaveOccurred())
			Expect(fo.ParentID).To(HaveValue(Equal(parent.ID)))

			// a stranger with the create permission but no rights on the
			// parent cannot
			stranger := authz.Actor{UserID: 99, Perms: usermodel.NewPermissionSet(authz.PermFoldersCreate, authz.PermFoldersUpdate)}
			_, err = svc.Create(ctx, stranger, folder.CreateFolderDTO{Name: "child2", ParentPublicID: ptr(parent.PublicID)})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})
	})

	Describe("Move", func() {
		It("moves a folder under a new parent", func() {
			a := seedFolder("a", nil)
			b := seedFolder("b", nil)

			moved, err := svc.Move(ctx, owner, "b", folder.MoveFolderDTO{ParentPublicID: ptr("a")})
			Expect(err).NotTo(HaveOccurred())
			Expect(moved.ParentID).To(HaveValue(Equal(a.ID)))
			Expect(repo.folders[b.ID].ParentID).To(HaveValue(Equal(a.ID)))
		})

		It("rejects moving a folder into itself", func() {
			seedFolder("a", nil)
			_, err := svc.Move(ctx, owner, "a", folder.MoveFolderDTO{ParentPublicID: ptr("a")})
			Expect(err).To(MatchError(internal.ErrFolderCycle))
		})

		It("rejects moving a folder into its own subtree", func() {
			a := seedFolder("a", nil)
			b := seedFolder("b", &a.ID)
			seedFolder("c", &b.ID)

			_, err := svc.Move(ctx, owner, "a", folder.MoveFolderDTO{ParentPublicID: ptr("c")})
			Expect(err).To(MatchError(internal.ErrFolderCycle))
		})

		It("moves to the root when no parent is given", func() {
			a := seedFolder("a", nil)
			b := seedFolder("b", &a.ID)

			moved, err := svc.Move(ctx, owner, "b", folder.MoveFolderDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(moved.ParentID).To(BeNil())
			Expect(repo.folders[b.ID].ParentID).To(BeNil())
		})
	})

	Describe("Trash and Restore", func() {
		It("trashes the whole subtree including files", func() {
			a := seedFolder("a", nil)
			b := seedFolder("b", &a.ID)
			repo.files[1] = &filemodel.File{
				ID: 1, FolderID: b.ID, OwnerUserID: ownerID,
				Disk: "primary", Path: "x", Lifecycle: filemodel.LifecycleLive,
			}

			Expect(svc.Trash(ctx, owner, "a")).To(Succeed())

			Expect(repo.folders[a.ID].Lifecycle).To(Equal(foldermodel.LifecycleTrashed))
			Expect(repo.folders[b.ID].Lifecycle).To(Equal(foldermodel.LifecycleTrashed))
			Expect(repo.files[1].Lifecycle).To(Equal(filemodel.LifecycleTrashed))
		})

		It("restores the subtree", func() {
			a := seedFolder("a", nil)
			b := seedFolder("b", &a.ID)
			Expect(svc.Trash(ctx, owner, "a")).To(Succeed())

			Expect(svc.Restore(ctx, owner, "a")).To(Succeed())

			Expect(repo.folders[a.ID].Lifecycle).To(Equal(foldermodel.LifecycleLive))
			Expect(repo.folders[b.ID].Lifecycle).To(Equal(foldermodel.LifecycleLive))
		})

		It("refuses restore without the restore permission", func() {
			seedFolder("a", nil)
			Expect(svc.Trash(ctx, owner, "a")).To(Succeed())

			norestore := authz.Actor{UserID: ownerID, Perms: usermodel.NewPermissionSet(
				authz.PermFoldersView, authz.PermFoldersDelete,
			)}
			Expect(svc.Restore(ctx, norestore, "a")).To(MatchError(internal.ErrAccessDenied))
		})
	})

	Describe("Purge", func() {
		It("rejects purging a live folder", func() {
			seedFolder("a", nil)
			err := svc.Purge(ctx, owner, "a")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeResourceTrashed))
		})

		It("marks trashed subtree rows as purged", func() {
			a := seedFolder("a", nil)
			repo.files[1] = &filemodel.File{
				ID: 1, FolderID: a.ID, OwnerUserID: ownerID,
				Disk: "primary", Path: "x", Lifecycle: filemodel.LifecycleLive,
			}
			Expect(svc.Trash(ctx, owner, "a")).To(Succeed())

			Expect(svc.Purge(ctx, owner, "a")).To(Succeed())

			Expect(repo.folders[a.ID].Lifecycle).To(Equal(foldermodel.LifecyclePurged))
			Expect(repo.files[1].Lifecycle).To(Equal(filemodel.LifecyclePurged))
		})
	})
})

type noopBackend struct{}

func (noopBackend) Exists(context.Context, string) (bool, error) { return true, nil }
func (noopBackend) ReadStream(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}
func (noopBackend) Write(context.Context, string, io.Reader, int64, string) error { return nil }
func (noopBackend) Move(context.Context, string, string) error                    { return nil }
func (noopBackend) Delete(context.Context, string) error                          { return nil }

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
