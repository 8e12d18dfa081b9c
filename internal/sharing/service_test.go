package sharing_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	"github.com/deptfile/file-management/internal/authz"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	foldermodel "github.com/deptfile/file-management/internal/core/datamodel/folder"
	"github.com/deptfile/file-management/internal/core/datamodel/permission"
	"github.com/deptfile/file-management/internal/core/datamodel/sharelink"
	usermodel "github.com/deptfile/file-management/internal/core/datamodel/user"
	"github.com/deptfile/file-management/internal/sharing"
)

func TestSharing(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sharing Suite")
}

type memRepo struct {
	filePerms   map[[2]int64]*permission.FilePermission
	folderPerms map[[2]int64]*permission.FolderPermission
	links       map[int64]*sharelink.ShareLink
	nextID      int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		filePerms:   make(map[[2]int64]*permission.FilePermission),
		folderPerms: make(map[[2]int64]*permission.FolderPermission),
		links:       make(map[int64]*sharelink.ShareLink),
	}
}

func (r *memRepo) UpsertFilePermission(_ context.Context, p *permission.FilePermission) error {
	r.filePerms[[2]int64{p.FileID, p.UserID}] = p
	return nil
}

func (r *memRepo) DeleteFilePermission(_ context.Context, fileID, userID int64) error {
	delete(r.filePerms, [2]int64{fileID, userID})
	return nil
}

func (r *memRepo) UpsertFolderPermission(_ context.Context, p *permission.FolderPermission) error {
	r.folderPerms[[2]int64{p.FolderID, p.UserID}] = p
	return nil
}

func (r *memRepo) DeleteFolderPermission(_ context.Context, folderID, userID int64) error {
	delete(r.folderPerms, [2]int64{folderID, userID})
	return nil
}

func (r *memRepo) CreateShareLink(_ context.Context, link *sharelink.ShareLink) error {
	r.nextID++
	link.ID = r.nextID
	r.links[link.ID] = link
	return nil
}

func (r *memRepo) ShareLinkByToken(_ context.Context, token string) (*sharelink.ShareLink, error) {
	for _, link := range r.links {
		if link.Token == token {
			cp := *link
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ShareLinkByPublicID(_ context.Context, publicID string) (*sharelink.ShareLink, error) {
	for _, link := range r.links {
		if link.PublicID == publicID {
			cp := *link
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListShareLinks(_ context.Context, fileID int64) ([]*sharelink.ShareLink, error) {
	var out []*sharelink.ShareLink
	for _, link := range r.links {
		if link.FileID == fileID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (r *memRepo) RevokeShareLink(_ context.Context, id int64, at time.Time) error {
	if link, ok := r.links[id]; ok && link.RevokedAt == nil {
		link.RevokedAt = &at
	}
	return nil
}

func (r *memRepo) ConsumeDownload(_ context.Context, id int64, now time.Time) (bool, error) {
	link, ok := r.links[id]
	if !ok {
		return false, nil
	}
	if !link.IsAccessible(now) {
		return false, nil
	}
	link.DownloadCount++
	return true, nil
}

type memFiles struct {
	byID map[int64]*filemodel.File
}

func (m *memFiles) FileByPublicID(_ context.Context, publicID string) (*filemodel.File, error) {
	for _, f := range m.byID {
		if f.PublicID == publicID {
			return f, nil
		}
	}
	return nil, nil
}

func (m *memFiles) FileByID(_ context.Context, id int64) (*filemodel.File, error) {
	return m.byID[id], nil
}

type memFolders struct {
	byPublicID map[string]*foldermodel.Folder
}

func (m *memFolders) FolderByPublicID(_ context.Context, publicID string) (*foldermodel.Folder, error) {
	return m.byPublicID[publicID], nil
}

type memMembers struct {
	byDept map[int64][]int64
}

func (m *memMembers) ActiveUserIDsInDepartment(_ context.Context, deptID int64) ([]int64, error) {
	return m.byDept[deptID], nil
}

// engineStore backs the authorization engine with the same in-memory grants
// the repo holds, so grants made through the service are visible to it.
type engineStore struct {
	repo    *memRepo
	folders map[int64]*foldermodel.Folder
}

func (s *engineStore) FolderByID(_ context.Context, id int64) (*foldermodel.Folder, error) {
	return s.folders[id], nil
}

func (s *engineStore) FilePermission(_ context.Context, fileID, userID int64) (*permission.FilePermission, error) {
	return s.repo.filePerms[[2]int64{fileID, userID}], nil
}

func (s *engineStore) FolderPermissions(_ context.Context, folderIDs []int64, userID int64) ([]*permission.FolderPermission, error) {
	var out []*permission.FolderPermission
	for _, id := range folderIDs {
		if p, ok := s.repo.folderPerms[[2]int64{id, userID}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *engineStore) FileHasOverrides(_ context.Context, fileID int64) (bool, error) {
	for key := range s.repo.filePerms {
		if key[0] == fileID {
			return true, nil
		}
	}
	return false, nil
}

func (s *engineStore) FolderSetHasOverrides(_ context.Context, folderIDs []int64) (bool, error) {
	for _, id := range folderIDs {
		for key := range s.repo.folderPerms {
			if key[0] == id {
				return true, nil
			}
		}
	}
	return false, nil
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

func ptr[T any](v T) *T { return &v }

var _ = Describe("ShareLink accessibility", func() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	DescribeTable("IsAccessible",
		func(link sharelink.ShareLink, want bool) {
			Expect(link.IsAccessible(now)).To(Equal(want))
		},
		Entry("no constraints", sharelink.ShareLink{}, true),
		Entry("future expiry", sharelink.ShareLink{ExpiresAt: ptr(now.Add(time.Hour))}, true),
		Entry("past expiry", sharelink.ShareLink{ExpiresAt: ptr(now.Add(-time.Hour))}, false),
		Entry("quota remaining", sharelink.ShareLink{MaxDownloads: ptr(int64(3)), DownloadCount: 2}, true),
		Entry("quota exhausted", sharelink.ShareLink{MaxDownloads: ptr(int64(3)), DownloadCount: 3}, false),
		Entry("revoked", sharelink.ShareLink{RevokedAt: ptr(now.Add(-time.Minute))}, false),
		Entry("revoked wins over valid expiry",
			sharelink.ShareLink{RevokedAt: ptr(now), ExpiresAt: ptr(now.Add(time.Hour))}, false),
	)
})

var _ = Describe("Sharing service", func() {
	var (
		ctx       context.Context
		repo      *memRepo
		files     *memFiles
		folders   *memFolders
		members   *memMembers
		auditRepo *memAuditRepo
		svc       *sharing.Service

		owner    authz.Actor
		stranger authz.Actor
	)

	const deptID = int64(7)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMemRepo()

		folderRows := map[int64]*foldermodel.Folder{
			1: {ID: 1, PublicID: "folder-1", OwnerUserID: ptr(int64(10)), Name: "reports", Lifecycle: foldermodel.LifecycleLive},
		}
		files = &memFiles{byID: map[int64]*filemodel.File{
			100: {
				ID: 100, PublicID: "file-100", FolderID: 1, OwnerUserID: 10,
				Name: "q3.pdf", Lifecycle: filemodel.LifecycleLive,
			},
		}}
		folders = &memFolders{byPublicID: map[string]*foldermodel.Folder{
			"folder-1": folderRows[1],
		}}
		members = &memMembers{byDept: map[int64][]int64{
			deptID: {10, 21, 22, 23},
		}}

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		auditRepo = &memAuditRepo{}
		store := &engineStore{repo: repo, folders: folderRows}
		engine := authz.NewEngine(store, store, logger)
		svc = sharing.NewService(repo, files, folders, members, engine, audit.NewService(auditRepo, logger), logger)

		owner = authz.Actor{
			UserID: 10,
			Perms: usermodel.NewPermissionSet(
				authz.PermShareManage, authz.PermFilesView, authz.PermFoldersView,
			),
		}
		stranger = authz.Actor{
			UserID: 99,
			Perms:  usermodel.NewPermissionSet(authz.PermFilesView),
		}
	})

	Describe("GrantFilePermission", func() {
		It("stores the grant and records an audit entry", func() {
			grant, err := svc.GrantFilePermission(ctx, owner, "file-100", sharing.GrantFilePermissionDTO{
				UserID: 21, CanView: true, CanDownload: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(grant.FileID).To(Equal(int64(100)))
			Expect(grant.CreatedBy).To(Equal(int64(10)))

			Expect(repo.filePerms).To(HaveKey([2]int64{100, 21}))
			Expect(auditRepo.entries).To(HaveLen(1))
			Expect(auditRepo.entries[0].Action).To(Equal(auditmodel.ActionPermissionGranted))
		})

		It("denies an actor without share rights on the file", func() {
			_, err := svc.GrantFilePermission(ctx, stranger, "file-100", sharing.GrantFilePermissionDTO{
				UserID: 21, CanView: true,
			})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
			Expect(repo.filePerms).To(BeEmpty())
		})

		It("returns not found for an unknown file", func() {
			_, err := svc.GrantFilePermission(ctx, owner, "file-missing", sharing.GrantFilePermissionDTO{
				UserID: 21, CanView: true,
			})
			Expect(err).To(MatchError(internal.ErrFileNotFound))
		})

		It("allows a super admin regardless of engine outcome", func() {
			admin := authz.Actor{UserID: 1, SuperAdmin: true}
			_, err := svc.GrantFilePermission(ctx, admin, "file-100", sharing.GrantFilePermissionDTO{
				UserID: 21, CanView: true,
			})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("GrantFolderToDepartment", func() {
		It("fans out one row per member, skipping the grantor", func() {
			granted, err := svc.GrantFolderToDepartment(ctx, owner, "folder-1", sharing.GrantFolderToDepartmentDTO{
				DepartmentID: deptID, CanView: true, CanUpload: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(granted).To(Equal(3))

			Expect(repo.folderPerms).To(HaveKey([2]int64{1, 21}))
			Expect(repo.folderPerms).To(HaveKey([2]int64{1, 22}))
			Expect(repo.folderPerms).To(HaveKey([2]int64{1, 23}))
			Expect(repo.folderPerms).NotTo(HaveKey([2]int64{1, 10}))

			Expect(auditRepo.entries).To(HaveLen(1))
			Expect(auditRepo.entries[0].Meta["member_count"]).To(Equal(3))
		})
	})

	Describe("CreateShareLink", func() {
		It("issues a tokenized link and hashes the password", func() {
			link, err := svc.CreateShareLink(ctx, owner, "file-100", sharing.CreateShareLinkDTO{
				Password:     ptr("s3cret-pw"),
				MaxDownloads: ptr(int64(5)),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(link.Token).NotTo(BeEmpty())
			Expect(link.PasswordHash).NotTo(BeNil())
			Expect(*link.PasswordHash).NotTo(Equal("s3cret-pw"))
			Expect(bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte("s3cret-pw"))).To(Succeed())
		})

		It("denies a stranger", func() {
			_, err := svc.CreateShareLink(ctx, stranger, "file-100", sharing.CreateShareLinkDTO{})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})
	})

	Describe("Resolve", func() {
		var link *sharelink.ShareLink

		BeforeEach(func() {
			var err error
			link, err = svc.CreateShareLink(ctx, owner, "file-100", sharing.CreateShareLinkDTO{
				Password: ptr("s3cret-pw"),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the file for the right password", func() {
			got, f, err := svc.Resolve(ctx, link.Token, "s3cret-pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(link.ID))
			Expect(f.PublicID).To(Equal("file-100"))
		})

		It("rejects a missing password", func() {
			_, _, err := svc.Resolve(ctx, link.Token, "")
			Expect(err).To(MatchError(internal.ErrShareLinkPassword))
		})

		It("rejects a wrong password", func() {
			_, _, err := svc.Resolve(ctx, link.Token, "guess")
			Expect(err).To(MatchError(internal.ErrShareLinkPassword))
		})

		It("rejects an unknown token", func() {
			_, _, err := svc.Resolve(ctx, "no-such-token", "")
			Expect(err).To(MatchError(internal.ErrShareLinkNotFound))
		})

		It("rejects a revoked link", func() {
			Expect(svc.RevokeShareLink(ctx, owner, link.PublicID)).To(Succeed())
			_, _, err := svc.Resolve(ctx, link.Token, "s3cret-pw")
			Expect(err).To(MatchError(internal.ErrShareLinkExpired))
		})

		It("hides a file that was trashed after the link was made", func() {
			files.byID[100].Lifecycle = filemodel.LifecycleTrashed
			_, _, err := svc.Resolve(ctx, link.Token, "s3cret-pw")
			Expect(err).To(MatchError(internal.ErrShareLinkNotFound))
		})
	})

	Describe("ResolveForDownload", func() {
		It("consumes the quota and stops at the limit", func() {
			link, err := svc.CreateShareLink(ctx, owner, "file-100", sharing.CreateShareLinkDTO{
				MaxDownloads: ptr(int64(2)),
			})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = svc.ResolveForDownload(ctx, link.Token, "")
			Expect(err).NotTo(HaveOccurred())
			_, _, err = svc.ResolveForDownload(ctx, link.Token, "")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = svc.ResolveForDownload(ctx, link.Token, "")
			Expect(err).To(MatchError(internal.ErrShareLinkExpired))
			Expect(repo.links[link.ID].DownloadCount).To(Equal(int64(2)))
		})
	})
})
