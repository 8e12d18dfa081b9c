package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/deptfile/file-management/internal/audit"
	auditmodel "github.com/deptfile/file-management/internal/core/datamodel/audit"
	filemodel "github.com/deptfile/file-management/internal/core/datamodel/file"
	"github.com/deptfile/file-management/internal/storage"
)

// FileStore is the narrow persistence surface the pipeline needs. GetByID
// returns (nil, nil) for a missing row.
type FileStore interface {
	GetByID(ctx context.Context, id int64) (*filemodel.File, error)
	SetChecksum(ctx context.Context, id int64, checksum string) error
	SetScanStatus(ctx context.Context, id int64, status filemodel.ScanStatus) error
	// Quarantine runs inside a transaction holding a row lock on the file.
	// The move callback executes before the row update commits; if it errors
	// the transaction rolls back and the row is untouched. Returns whether
	// the transition was actually performed: a concurrent dispatch that lost
	// the lock race sees the row already quarantined and reports false.
	Quarantine(ctx context.Context, id int64, quarantinePath string, move func(f *filemodel.File) error) (bool, error)
	// PendingScans lists live files still awaiting a scan verdict, oldest
	// first. The recovery worker uses it to re-enqueue jobs lost to a crash
	// or a stopped pipeline.
	PendingScans(ctx context.Context, limit int) ([]int64, error)
}

// Processor executes the two post-upload safety jobs. Checksum and scan are
// independent; neither blocks file visibility.
type Processor struct {
	files    FileStore
	disks    *storage.Registry
	scanner  Scanner
	audits   *audit.Service
	prefix   string
	failOpen bool
	logger   *slog.Logger
}

func NewProcessor(files FileStore, disks *storage.Registry, scanner Scanner, audits *audit.Service, quarantinePrefix string, failOpen bool, logger *slog.Logger) *Processor {
	return &Processor{
		files:    files,
		disks:    disks,
		scanner:  scanner,
		audits:   audits,
		prefix:   quarantinePrefix,
		failOpen: failOpen,
		logger:   logger,
	}
}

// ProcessChecksum streams the stored bytes through SHA-256 and writes the
// digest onto the file row. A vanished row or object is a no-op: the desired
// end state already holds.
func (p *Processor) ProcessChecksum(ctx context.Context, fileID int64) error {
	f, err := p.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f == nil || f.Lifecycle == filemodel.LifecyclePurged {
		p.logger.Debug("checksum job skipped, file gone", "file_id", fileID)
		return nil
	}

	backend, err := p.disks.Disk(f.Disk)
	if err != nil {
		return err
	}

	stream, err := backend.ReadStream(ctx, f.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("checksum job skipped, object gone", "file_id", fileID, "path", f.Path)
			return nil
		}
		return err
	}
	defer stream.Close()

	h := sha256.New()
	if _, err := io.Copy(h, stream); err != nil {
		return fmt.Errorf("hash file %d: %w", fileID, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if err := p.files.SetChecksum(ctx, fileID, sum); err != nil {
		return err
	}

	p.logger.Info("checksum computed", "file_id", fileID, "checksum", sum)
	return nil
}

// ProcessScan runs the antivirus scanner over the stored bytes. Scanner
// failures follow the fail-open/fail-closed policy; an infection triggers an
// atomic quarantine.
func (p *Processor) ProcessScan(ctx context.Context, fileID int64) error {
	f, err := p.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f == nil || f.Lifecycle == filemodel.LifecyclePurged {
		p.logger.Debug("scan job skipped, file gone", "file_id", fileID)
		return nil
	}

	backend, err := p.disks.Disk(f.Disk)
	if err != nil {
		return err
	}
	exists, err := backend.Exists(ctx, f.Path)
	if err != nil {
		return err
	}
	if !exists {
		p.logger.Debug("scan job skipped, object gone", "file_id", fileID, "path", f.Path)
		return nil
	}

	result, err := p.scanner.Scan(ctx, f.Disk, f.Path)
	if err != nil {
		if p.failOpen {
			p.logger.Warn("scanner unavailable, passing file through (fail-open)",
				"file_id", fileID, "error", err)
			return nil
		}
		return fmt.Errorf("scan file %d: %w", fileID, err)
	}

	if !result.Infected {
		if err := p.files.SetScanStatus(ctx, fileID, filemodel.ScanStatusClean); err != nil {
			return err
		}
		p.logger.Info("scan clean", "file_id", fileID)
		return nil
	}

	return p.quarantine(ctx, f, result)
}

func (p *Processor) quarantine(ctx context.Context, f *filemodel.File, result ScanResult) error {
	qpath := p.quarantinePath(f, time.Now())

	backend, err := p.disks.Disk(f.Disk)
	if err != nil {
		return err
	}

	moved, err := p.files.Quarantine(ctx, f.ID, qpath, func(locked *filemodel.File) error {
		// the bytes move first; the row update only commits after the move
		// succeeded, so the record never points at a path that is not there
		return backend.Move(ctx, locked.Path, qpath)
	})
	if err != nil {
		return fmt.Errorf("quarantine file %d: %w", f.ID, err)
	}
	if !moved {
		// a concurrent dispatch already quarantined the row; that run wrote
		// the audit entry
		p.logger.Debug("quarantine already handled", "file_id", f.ID)
		return nil
	}

	p.audits.Log(ctx, nil, auditmodel.ActionFileQuarantined, "file", &f.ID, map[string]any{
		"signature":       result.Signature,
		"scanner_raw":     result.Raw,
		"original_path":   f.Path,
		"quarantine_path": qpath,
		"disk":            f.Disk,
	})

	p.logger.Warn("file quarantined",
		"file_id", f.ID,
		"signature", result.Signature,
		"path", qpath)
	return nil
}

// quarantinePath partitions by date and disambiguates with the public id so
// two infected files with the same name never collide.
func (p *Processor) quarantinePath(f *filemodel.File, now time.Time) string {
	return path.Join(p.prefix, now.Format("2006/01/02"), fmt.Sprintf("%s_%s", f.PublicID, f.Name))
}
