package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/deptfile/file-management/internal"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
)

type Repository interface {
	Append(ctx context.Context, entry *auditmodel.Log) error
	List(ctx context.Context, filter ListFilter) ([]*auditmodel.Log, error)
}

type ListFilter struct {
	ActorID    *int64
	Action     string
	EntityType string
	EntityID   *int64
	Limit      int
	Offset     int
}

// Service appends immutable audit rows. Writes are fire-and-forget from the
// caller's perspective: a failed insert is logged, never returned, so audit
// problems cannot fail the business operation they describe.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Log(ctx context.Context, actorID *int64, action, entityType string, entityID *int64, meta map[string]any) {
	entry := &auditmodel.Log{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       meta,
		CreatedAt:  time.Now(),
	}

	if reqMeta, ok := internal.RequestMetaFromContext(ctx); ok {
		entry.IP = reqMeta.IP
		entry.UserAgent = reqMeta.UserAgent
		entry.RequestID = reqMeta.RequestID
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit log",
			"error", err,
			"action", action,
			"entity_type", entityType)
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*auditmodel.Log, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		return nil, err
	}
	return entries, nil
}
