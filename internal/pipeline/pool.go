package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

type JobKind string

const (
	JobChecksum JobKind = "checksum"
	JobScan     JobKind = "scan"
)

type Job struct {
	Kind   JobKind
	FileID int64
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "kind", job.Kind, "file_id", job.FileID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
}

// Pool runs the safety jobs on a bounded worker pool, decoupled from the
// upload request that enqueued them. Jobs for different files run in
// parallel; same-file quarantine transitions serialize on the row lock held
// inside FileStore.Quarantine.
type Pool struct {
	processor *Processor
	logger    *slog.Logger

	jobQueue    chan Job
	workerPool  chan chan Job
	maxWorkers  int
	maxAttempts int
	baseBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewPool(processor *Processor, cfg Config, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.Workers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 500 * time.Millisecond
	}

	pool := &Pool{
		processor:   processor,
		logger:      logger,
		maxWorkers:  maxWorkers,
		jobQueue:    make(chan Job, queueSize),
		workerPool:  make(chan chan Job, maxWorkers),
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		ctx:         ctx,
		cancel:      cancel,
	}

	pool.start()
	return pool
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("file safety pipeline started",
			"workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.logger.Info("pipeline dispatcher shutting down")
					return
				}
			case <-p.ctx.Done():
				p.logger.Info("pipeline dispatcher shutting down")
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("pipeline dispatcher shutting down")
			return
		}
	}
}

// EnqueueUploaded schedules both safety jobs for a freshly stored file.
func (p *Pool) EnqueueUploaded(fileID int64) {
	p.Enqueue(Job{Kind: JobChecksum, FileID: fileID})
	p.Enqueue(Job{Kind: JobScan, FileID: fileID})
}

func (p *Pool) Enqueue(job Job) {
	select {
	case p.jobQueue <- job:
	case <-p.ctx.Done():
		p.logger.Warn("pipeline stopped, dropping job", "kind", job.Kind, "file_id", job.FileID)
	}
}

func (p *Pool) process(job Job) {
	backoff := retry.WithJitter(p.baseBackoff/2, retry.NewExponential(p.baseBackoff))
	backoff = retry.WithMaxRetries(uint64(p.maxAttempts-1), backoff)

	err := retry.Do(p.ctx, backoff, func(ctx context.Context) error {
		var jobErr error
		switch job.Kind {
		case JobChecksum:
			jobErr = p.processor.ProcessChecksum(ctx, job.FileID)
		case JobScan:
			jobErr = p.processor.ProcessScan(ctx, job.FileID)
		}
		if jobErr != nil {
			p.logger.Warn("pipeline job attempt failed",
				"kind", job.Kind, "file_id", job.FileID, "error", jobErr)
			return retry.RetryableError(jobErr)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("pipeline job permanently failed",
			"kind", job.Kind, "file_id", job.FileID, "error", err)
	}
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down file safety pipeline")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("file safety pipeline shutdown complete")
}
