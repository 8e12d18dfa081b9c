package postgres

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	idem "github.com/deptfile/file-management/internal/core/datamodel/idempotency"
	"github.com/deptfile/file-management/internal/idempotency"
)

func TestIdempotencyRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "IdempotencyRepository Suite")
}

type SQLiteRecord struct {
	ID           int64     `gorm:"primaryKey"`
	ActorID      int64     `gorm:"column:actor_id;not null;default:0;uniqueIndex:idx_actor_scope_key"`
	Scope        string    `gorm:"column:scope;not null;uniqueIndex:idx_actor_scope_key"`
	Key          string    `gorm:"column:idempotency_key;not null;uniqueIndex:idx_actor_scope_key"`
	RequestHash  string    `gorm:"column:request_hash;not null"`
	Status       string    `gorm:"column:status;not null;default:'in_progress'"`
	ResponseCode int       `gorm:"column:response_code"`
	ResponseBody string    `gorm:"column:response_body"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (SQLiteRecord) TableName() string {
	return "idempotency_records"
}

var _ = Describe("IdempotencyRepository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo idempotency.Repository
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteRecord{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewIdempotencyRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	newRecord := func(actorID int64, scope, key string) *idem.Record {
		return &idem.Record{
			ActorID:     actorID,
			Scope:       scope,
			Key:         key,
			RequestHash: "abc123",
			Status:      idem.StatusInProgress,
			ExpiresAt:   time.Now().Add(time.Hour),
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
	}

	Describe("Create", func() {
		It("should create a record successfully", func() {
			rec := newRecord(1, "create-folder", "key-1")
			err := repo.Create(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ID).To(BeNumerically(">", 0))
		})

		It("should map a lost insert race to ErrDuplicateRecord", func() {
			Expect(repo.Create(ctx, newRecord(1, "create-folder", "key-1"))).To(Succeed())

			err := repo.Create(ctx, newRecord(1, "create-folder", "key-1"))
			Expect(err).To(MatchError(idempotency.ErrDuplicateRecord))
		})

		It("should allow the same key for a different actor or scope", func() {
			Expect(repo.Create(ctx, newRecord(1, "create-folder", "key-1"))).To(Succeed())
			Expect(repo.Create(ctx, newRecord(2, "create-folder", "key-1"))).To(Succeed())
			Expect(repo.Create(ctx, newRecord(1, "upload-file", "key-1"))).To(Succeed())
		})
	})

	Describe("Find", func() {
		It("should return nil for a missing record", func() {
			rec, err := repo.Find(ctx, 1, "create-folder", "key-missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeNil())
		})

		It("should find a stored record by actor, scope and key", func() {
			Expect(repo.Create(ctx, newRecord(1, "create-folder", "key-1"))).To(Succeed())

			rec, err := repo.Find(ctx, 1, "create-folder", "key-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).NotTo(BeNil())
			Expect(rec.RequestHash).To(Equal("abc123"))
			Expect(rec.Status).To(Equal(idem.StatusInProgress))
		})
	})

	Describe("MarkCompleted", func() {
		It("should store the response snapshot exactly once", func() {
			rec := newRecord(1, "create-folder", "key-1")
			Expect(repo.Create(ctx, rec)).To(Succeed())

			Expect(repo.MarkCompleted(ctx, rec.ID, 201, `{"data":"{}"}`)).To(Succeed())

			got, err := repo.Find(ctx, 1, "create-folder", "key-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(idem.StatusCompleted))
			Expect(got.ResponseCode).To(Equal(201))

			// a late writer must not flip a completed record
			Expect(repo.MarkCompleted(ctx, rec.ID, 500, `{"data":"other"}`)).To(Succeed())
			got, err = repo.Find(ctx, 1, "create-folder", "key-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ResponseCode).To(Equal(201))
		})
	})

	Describe("DeleteExpired", func() {
		It("should remove only records past their expiry", func() {
			expired := newRecord(1, "create-folder", "key-old")
			expired.ExpiresAt = time.Now().Add(-time.Hour)
			Expect(repo.Create(ctx, expired)).To(Succeed())
			Expect(repo.Create(ctx, newRecord(1, "create-folder", "key-live"))).To(Succeed())

			removed, err := repo.DeleteExpired(ctx, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(int64(1)))

			rec, err := repo.Find(ctx, 1, "create-folder", "key-live")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).NotTo(BeNil())
		})
	})
})
