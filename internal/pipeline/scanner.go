package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clamd "github.com/dutchcoders/go-clamd"

	"github.com/deptfile/file-management/internal/storage"
)

// ScanResult is the scanner verdict for one object.
type ScanResult struct {
	Infected  bool
	Signature string
	Raw       string
}

// Scanner checks stored bytes for malware. Implementations must return an
// error for transport or protocol problems; a clean file is (ScanResult{}, nil).
type Scanner interface {
	Scan(ctx context.Context, disk, path string) (ScanResult, error)
}

// ClamdScanner streams objects to a clamd daemon over its INSTREAM protocol.
type ClamdScanner struct {
	client  *clamd.Clamd
	disks   *storage.Registry
	timeout time.Duration
	logger  *slog.Logger
}

func NewClamdScanner(address string, timeout time.Duration, disks *storage.Registry, logger *slog.Logger) *ClamdScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClamdScanner{
		client:  clamd.NewClamd(address),
		disks:   disks,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *ClamdScanner) Scan(ctx context.Context, disk, path string) (ScanResult, error) {
	backend, err := s.disks.Disk(disk)
	if err != nil {
		return ScanResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream, err := backend.ReadStream(ctx, path)
	if err != nil {
		return ScanResult{}, fmt.Errorf("open object for scanning: %w", err)
	}
	defer stream.Close()

	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(stream, abort)
	if err != nil {
		return ScanResult{}, fmt.Errorf("clamd scan: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ScanResult{}, fmt.Errorf("clamd scan: %w", ctx.Err())
		case res, ok := <-results:
			if !ok {
				return ScanResult{}, nil
			}
			switch res.Status {
			case clamd.RES_OK:
				continue
			case clamd.RES_FOUND:
				return ScanResult{
					Infected:  true,
					Signature: res.Description,
					Raw:       res.Raw,
				}, nil
			default:
				return ScanResult{}, fmt.Errorf("clamd scan failed: %s", res.Raw)
			}
		}
	}
}

// NoopScanner is the disabled variant: every file reports clean.
type NoopScanner struct{}

func (NoopScanner) Scan(_ context.Context, _, _ string) (ScanResult, error) {
	return ScanResult{}, nil
}
