package pipeline_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deptfile/file-management/internal/audit"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	"github.com/deptfile/file-management/internal/pipeline"
	"github.com/deptfile/file-management/internal/storage"
)

func TestPipeline(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}

type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (b *memBackend) Exists(_ context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok, nil
}

func (b *memBackend) ReadStream(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBackend) Write(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = data
	return nil
}

func (b *memBackend) Move(_ context.Context, from, to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[from]
	if !ok {
		return storage.ErrNotFound
	}
	b.objects[to] = data
	delete(b.objects, from)
	return nil
}

func (b *memBackend) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	return nil
}

type memFileStore struct {
	mu    sync.Mutex
	files map[int64]*filemodel.File
	disks *storage.Registry
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[int64]*filemodel.File)}
}

func (s *memFileStore) GetByID(_ context.Context, id int64) (*filemodel.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *memFileStore) SetChecksum(_ context.Context, id int64, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		f.Checksum = &checksum
	}
	return nil
}

func (s *memFileStore) SetScanStatus(_ context.Context, id int64, status filemodel.ScanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		f.ScanStatus = status
	}
	return nil
}

func (s *memFileStore) PendingScans(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, f := range s.files {
		if len(ids) == limit {
			break
		}
		if f.ScanStatus == filemodel.ScanStatusPending && f.Lifecycle == filemodel.LifecycleLive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memFileStore) Quarantine(_ context.Context, id int64, quarantinePath string, move func(f *filemodel.File) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return false, nil
	}
	if f.Lifecycle == filemodel.LifecyclePurged || f.ScanStatus == filemodel.ScanStatusInfected {
		return false, nil
	}
	if err := move(f); err != nil {
		return false, err
	}
	now := time.Now()
	f.ScanStatus = filemodel.ScanStatusInfected
	if f.Lifecycle == filemodel.LifecycleLive {
		f.Lifecycle = filemodel.LifecycleTrashed
		f.TrashedAt = &now
	}
	f.Path = quarantinePath
	return true, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*auditmodel.Log
}

func (r *memAuditRepo) Append(_ context.Context, entry *auditmodel.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, _ audit.ListFilter) ([]*auditmodel.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

type stubScanner struct {
	result pipeline.ScanResult
	err    error
	calls  int
}

func (s *stubScanner) Scan(_ context.Context, _ string, _ string) (pipeline.ScanResult, error) {
	s.calls++
	return s.result, s.err
}

var _ = Describe("Processor", func() {
	var (
		ctx       context.Context
		backend   *memBackend
		registry  *storage.Registry
		files     *memFileStore
		auditRepo *memAuditRepo
		audits    *audit.Service
		logger    *slog.Logger
	)

	const content = "quarterly report body"

	seedFile := func(id int64) *filemodel.File {
		f := &filemodel.File{
			ID:          id,
			PublicID:    "pub-1",
			FolderID:    1,
			OwnerUserID: 10,
			Name:        "report.pdf",
			Size:        int64(len(content)),
			Disk:        "primary",
			Path:        "uploads/report.pdf",
			ScanStatus:  filemodel.ScanStatusPending,
			Lifecycle:   filemodel.LifecycleLive,
		}
		files.files[id] = f
		_ = backend.Write(ctx, f.Path, strings.NewReader(content), f.Size, "application/pdf")
		return f
	}

	newProcessor := func(scanner pipeline.Scanner, failOpen bool) *pipeline.Processor {
		return pipeline.NewProcessor(files, registry, scanner, audits, "quarantine", failOpen, logger)
	}

	BeforeEach(func() {
		ctx = context.Background()
		backend = newMemBackend()
		registry = storage.NewRegistryFromBackends("primary", map[string]storage.Backend{"primary": backend})
		files = newMemFileStore()
		auditRepo = &memAuditRepo{}
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		audits = audit.NewService(auditRepo, logger)
	})

	Describe("ProcessChecksum", func() {
		It("writes the SHA-256 of the stored bytes onto the row", func() {
			seedFile(1)
			p := newProcessor(pipeline.NoopScanner{}, false)

			Expect(p.ProcessChecksum(ctx, 1)).To(Succeed())

			sum := sha256.Sum256([]byte(content))
			stored, _ := files.GetByID(ctx, 1)
			Expect(stored.Checksum).NotTo(BeNil())
			Expect(*stored.Checksum).To(Equal(hex.EncodeToString(sum[:])))
		})

		It("is a no-op when the row is gone", func() {
			p := newProcessor(pipeline.NoopScanner{}, false)
			Expect(p.ProcessChecksum(ctx, 99)).To(Succeed())
		})

		It("is a no-op when the object is gone", func() {
			f := seedFile(1)
			_ = backend.Delete(ctx, f.Path)
			p := newProcessor(pipeline.NoopScanner{}, false)

			Expect(p.ProcessChecksum(ctx, 1)).To(Succeed())

			stored, _ := files.GetByID(ctx, 1)
			Expect(stored.Checksum).To(BeNil())
		})
	})

	Describe("ProcessScan", func() {
		Context("when the scanner reports clean", func() {
			It("marks the file clean and leaves it in place", func() {
				f := seedFile(1)
				p := newProcessor(&stubScanner{result: pipeline.ScanResult{Infected: false}}, false)

				Expect(p.ProcessScan(ctx, 1)).To(Succeed())

				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusClean))
				Expect(stored.Lifecycle).To(Equal(filemodel.LifecycleLive))
				Expect(stored.Path).To(Equal(f.Path))
				Expect(auditRepo.entries).To(BeEmpty())
			})
		})

		Context("when the scanner reports an infection", func() {
			It("moves the bytes into quarantine before flipping the row", func() {
				f := seedFile(1)
				origPath := f.Path
				p := newProcessor(&stubScanner{result: pipeline.ScanResult{
					Infected:  true,
					Signature: "Eicar-Test-Signature",
				}}, false)

				Expect(p.ProcessScan(ctx, 1)).To(Succeed())

				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusInfected))
				Expect(stored.Lifecycle).To(Equal(filemodel.LifecycleTrashed))
				Expect(stored.Path).To(HavePrefix("quarantine/"))
				Expect(stored.Path).To(ContainSubstring("pub-1_report.pdf"))

				gone, _ := backend.Exists(ctx, origPath)
				Expect(gone).To(BeFalse())
				moved, _ := backend.Exists(ctx, stored.Path)
				Expect(moved).To(BeTrue())
			})

			It("writes exactly one audit entry with the signature", func() {
				seedFile(1)
				p := newProcessor(&stubScanner{result: pipeline.ScanResult{
					Infected:  true,
					Signature: "Eicar-Test-Signature",
				}}, false)

				Expect(p.ProcessScan(ctx, 1)).To(Succeed())

				Expect(auditRepo.entries).To(HaveLen(1))
				entry := auditRepo.entries[0]
				Expect(entry.Action).To(Equal(auditmodel.ActionFileQuarantined))
				Expect(entry.EntityType).To(Equal("file"))
				Expect(entry.Meta["signature"]).To(Equal("Eicar-Test-Signature"))
			})

			It("writes a single audit entry when the same file is dispatched twice", func() {
				seedFile(1)
				p := newProcessor(&stubScanner{result: pipeline.ScanResult{
					Infected:  true,
					Signature: "Eicar-Test-Signature",
				}}, false)

				Expect(p.ProcessScan(ctx, 1)).To(Succeed())
				Expect(p.ProcessScan(ctx, 1)).To(Succeed())

				Expect(auditRepo.entries).To(HaveLen(1))
				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusInfected))
				exists, _ := backend.Exists(ctx, stored.Path)
				Expect(exists).To(BeTrue())
			})

			It("still quarantines a file the user trashed before the verdict", func() {
				f := seedFile(1)
				origPath := f.Path
				now := time.Now()
				f.Lifecycle = filemodel.LifecycleTrashed
				f.TrashedAt = &now
				p := newProcessor(&stubScanner{result: pipeline.ScanResult{Infected: true}}, false)

				Expect(p.ProcessScan(ctx, 1)).To(Succeed())

				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusInfected))
				Expect(stored.Lifecycle).To(Equal(filemodel.LifecycleTrashed))
				Expect(stored.Path).To(HavePrefix("quarantine/"))

				gone, _ := backend.Exists(ctx, origPath)
				Expect(gone).To(BeFalse())
				Expect(auditRepo.entries).To(HaveLen(1))
			})

			It("leaves the row untouched when the storage move fails", func() {
				seedFile(1)
				failing := &vanishingBackend{memBackend: backend}
				registry = storage.NewRegistryFromBackends("primary", map[string]storage.Backend{"primary": failing})
				p := newProcessor(&stubScanner{result: pipeline.ScanResult{Infected: true}}, false)

				Expect(p.ProcessScan(ctx, 1)).To(HaveOccurred())

				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusPending))
				Expect(stored.Lifecycle).To(Equal(filemodel.LifecycleLive))
				Expect(auditRepo.entries).To(BeEmpty())
			})
		})

		Context("when the scanner is unavailable", func() {
			It("passes the file through under fail-open", func() {
				seedFile(1)
				p := newProcessor(&stubScanner{err: errors.New("clamd: connection refused")}, true)

				Expect(p.ProcessScan(ctx, 1)).To(Succeed())

				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusPending))
				Expect(stored.Lifecycle).To(Equal(filemodel.LifecycleLive))
			})

			It("propagates the error under fail-closed so the job retries", func() {
				seedFile(1)
				p := newProcessor(&stubScanner{err: errors.New("clamd: connection refused")}, false)

				Expect(p.ProcessScan(ctx, 1)).To(HaveOccurred())

				stored, _ := files.GetByID(ctx, 1)
				Expect(stored.ScanStatus).To(Equal(filemodel.ScanStatusPending))
			})
		})

		It("skips a row that was purged before the job ran", func() {
			f := seedFile(1)
			f.Lifecycle = filemodel.LifecyclePurged
			scanner := &stubScanner{result: pipeline.ScanResult{Infected: true}}
			p := newProcessor(scanner, false)

			Expect(p.ProcessScan(ctx, 1)).To(Succeed())
			Expect(scanner.calls).To(BeZero())
		})

		It("skips when the stored object no longer exists", func() {
			f := seedFile(1)
			_ = backend.Delete(ctx, f.Path)
			scanner := &stubScanner{result: pipeline.ScanResult{Infected: true}}
			p := newProcessor(scanner, false)

			Expect(p.ProcessScan(ctx, 1)).To(Succeed())
			Expect(scanner.calls).To(BeZero())
		})
	})
})

// vanishingBackend reports objects as present but fails the Move, modelling a
// disk that dies between the scan and the quarantine.
type vanishingBackend struct {
	*memBackend
}

func (b *vanishingBackend) Move(_ context.Context, _, _ string) error {
	return errors.New("disk gone")
}
