package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heatmap-scatter/server/internal/exportstore"
	"github.com/heatmap-scatter/server/internal/service"
)

// ErrQueueFull is returned by Submit when no worker can take the job.
var ErrQueueFull = errors.New("export queue is full; try again later")

// JobManagerConfig contains configuration for the export job manager.
type JobManagerConfig struct {
	Workers       int           // Concurrent exports (default 1)
	QueueSize     int           // Pending exports (default 16)
	SQLitePath    string        // Path to SQLite database
	Retention     time.Duration // How long finished jobs are kept (default 24h)
	CleanupPeriod time.Duration
}

// Executor produces the CSV of one export.
type Executor func(ctx context.Context, params exportstore.ExportParams) (csv []byte, rows, cols int, err error)

// JobManager runs CSV exports in the background with SQLite persistence.
type JobManager struct {
	cfg      JobManagerConfig
	store    *exportstore.Store
	queue    chan string // job IDs
	running  map[string]context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	// Executor is called to run the actual export.
	Executor Executor
}

// NewJobManager creates a new job manager with SQLite persistence.
func NewJobManager(cfg JobManagerConfig) (*JobManager, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 1 * time.Hour
	}

	store, err := exportstore.NewStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	return &JobManager{
		cfg:     cfg,
		store:   store,
		queue:   make(chan string, cfg.QueueSize),
		running: make(map[string]context.CancelFunc),
		stopCh:  make(chan struct{}),
	}, nil
}

// Store returns the underlying store for direct access.
func (jm *JobManager) Store() *exportstore.Store {
	return jm.store
}

// Start starts the worker goroutines and cleanup ticker.
// Also recovers from previous shutdown.
func (jm *JobManager) Start() {
	if err := jm.store.MarkRunningAsFailed("server restarted"); err != nil {
		log.Printf("[ExportJobManager] failed to mark running jobs as failed: %v", err)
	}

	queued, err := jm.store.ListQueuedJobs()
	if err != nil {
		log.Printf("[ExportJobManager] failed to list queued jobs: %v", err)
	} else {
		for _, job := range queued {
			select {
			case jm.queue <- job.ID:
				log.Printf("[ExportJobManager] re-queued job %s", job.ID)
			default:
				log.Printf("[ExportJobManager] queue full, cannot re-queue job %s", job.ID)
				jm.setStatus(job.ID, exportstore.JobStatusFailed, ErrQueueFull.Error())
			}
		}
	}

	for i := 0; i < jm.cfg.Workers; i++ {
		jm.wg.Add(1)
		go jm.worker()
	}

	jm.wg.Add(1)
	go jm.cleaner()
}

// Stop cancels running exports, waits for the workers and closes the store.
func (jm *JobManager) Stop() {
	jm.stopOnce.Do(func() {
		close(jm.stopCh)
		jm.mu.Lock()
		for _, cancel := range jm.running {
			cancel()
		}
		jm.mu.Unlock()
		jm.wg.Wait()
		jm.store.Close()
	})
}

func (jm *JobManager) worker() {
	defer jm.wg.Done()
	for {
		select {
		case <-jm.stopCh:
			return
		case jobID := <-jm.queue:
			jm.runJob(jobID)
		}
	}
}

func (jm *JobManager) runJob(jobID string) {
	job, err := jm.store.GetJob(jobID)
	if err != nil {
		log.Printf("[ExportJobManager] failed to load job %s: %v", jobID, err)
		return
	}
	// Cancelled or deleted while queued.
	if job == nil || job.Status != exportstore.JobStatusQueued {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jm.mu.Lock()
	jm.running[jobID] = cancel
	jm.mu.Unlock()

	defer func() {
		jm.mu.Lock()
		delete(jm.running, jobID)
		jm.mu.Unlock()
	}()

	if err := jm.store.UpdateJobStarted(jobID); err != nil {
		log.Printf("[ExportJobManager] failed to update job %s as started: %v", jobID, err)
		return
	}

	start := time.Now()
	var (
		csv        []byte
		rows, cols int
		execErr    = errors.New("no export executor configured")
	)
	if jm.Executor != nil {
		csv, rows, cols, execErr = jm.Executor(ctx, job.Params)
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		jm.setStatus(jobID, exportstore.JobStatusCancelled, "cancelled by user")
	case execErr != nil:
		log.Printf("[ExportJobManager] job %s failed: %v", jobID, execErr)
		jm.setStatus(jobID, exportstore.JobStatusFailed, execErr.Error())
	default:
		if err := jm.store.SaveResult(jobID, rows, cols, csv); err != nil {
			log.Printf("[ExportJobManager] failed to save result of job %s: %v", jobID, err)
			jm.setStatus(jobID, exportstore.JobStatusFailed, err.Error())
			return
		}
		log.Printf("[ExportJobManager] job %s exported %d x %d in %v", jobID, rows, cols, time.Since(start))
	}
}

// setStatus records status for a job and reports whether the store took it.
func (jm *JobManager) setStatus(jobID string, status exportstore.JobStatus, msg string) bool {
	if err := jm.store.UpdateJobStatus(jobID, status, msg); err != nil {
		log.Printf("[ExportJobManager] failed to mark job %s as %s: %v", jobID, status, err)
		return false
	}
	return true
}

func (jm *JobManager) cleaner() {
	defer jm.wg.Done()
	ticker := time.NewTicker(jm.cfg.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-jm.stopCh:
			return
		case <-ticker.C:
			jm.cleanup()
		}
	}
}

func (jm *JobManager) cleanup() {
	deleted, err := jm.store.DeleteExpiredJobs(jm.cfg.Retention)
	if err != nil {
		log.Printf("[ExportJobManager] cleanup error: %v", err)
	} else if deleted > 0 {
		log.Printf("[ExportJobManager] cleaned up %d expired jobs", deleted)
	}
}

// Submit creates a new job and enqueues it for execution.
func (jm *JobManager) Submit(params exportstore.ExportParams) (*exportstore.ExportJob, error) {
	job := &exportstore.ExportJob{
		ID:        uuid.NewString(),
		Status:    exportstore.JobStatusQueued,
		Params:    params,
		CreatedAt: time.Now(),
	}

	if err := jm.store.CreateJob(job); err != nil {
		return nil, err
	}

	select {
	case jm.queue <- job.ID:
	default:
		jm.setStatus(job.ID, exportstore.JobStatusFailed, ErrQueueFull.Error())
		job.Status = exportstore.JobStatusFailed
		job.Error = ErrQueueFull.Error()
	}

	return job, nil
}

// Get returns a job by ID, or nil.
func (jm *JobManager) Get(id string) *exportstore.ExportJob {
	job, err := jm.store.GetJob(id)
	if err != nil {
		log.Printf("[ExportJobManager] error getting job %s: %v", id, err)
		return nil
	}
	return job
}

// Result returns the CSV of a completed job.
func (jm *JobManager) Result(id string) ([]byte, bool) {
	csv, ok, err := jm.store.GetResult(id)
	if err != nil {
		log.Printf("[ExportJobManager] error reading result %s: %v", id, err)
		return nil, false
	}
	return csv, ok
}

// Cancel attempts to cancel a queued or running job.
func (jm *JobManager) Cancel(id string) bool {
	jm.mu.Lock()
	cancel, ok := jm.running[id]
	jm.mu.Unlock()

	if ok && cancel != nil {
		cancel()
		return true
	}

	job, err := jm.store.GetJob(id)
	if err != nil || job == nil {
		return false
	}
	if job.Status == exportstore.JobStatusQueued {
		return jm.setStatus(id, exportstore.JobStatusCancelled, "cancelled before start")
	}
	return false
}

// Delete cancels a job if needed and deletes it with its result.
func (jm *JobManager) Delete(id string) error {
	jm.Cancel(id)
	return jm.store.DeleteJob(id)
}

// DashboardExecutor runs exports against d.
func DashboardExecutor(d *service.Dashboard) Executor {
	return func(ctx context.Context, params exportstore.ExportParams) ([]byte, int, int, error) {
		csv, m, err := d.RunExport(ctx, params)
		if err != nil {
			return nil, 0, 0, err
		}
		return csv, m.Rows(), m.Cols(), nil
	}
}
