package printer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereceipt/thermal-bridge/internal/printjob"
)

// Job statuses
const (
	JobQueued    = "queued"
	JobPrinting  = "printing"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ErrQueueStopped fails jobs still waiting when the queue stops
var ErrQueueStopped = errors.New("print queue stopped")

// Report is one outcome of a job: a success when Err is nil. Item is the
// index of the item that produced it, or -1 for job level outcomes.
type Report struct {
	JobID string
	Item  int
	Err   error
}

// PrintJob represents a print job
type PrintJob struct {
	ID         string           `json:"id"`
	Items      []printjob.Item  `json:"-"`
	Status     string           `json:"status"` // queued, printing, failed, completed
	Error      error            `json:"-"`
	Reports    int              `json:"reports"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	reports    chan Report
}

// ErrorText returns the failure message, or "" for a job that did not fail
func (j *PrintJob) ErrorText() string {
	if j.Error == nil {
		return ""
	}
	return j.Error.Error()
}

// PrintQueue runs print jobs one at a time in submission order
type PrintQueue struct {
	jobs   []*PrintJob
	mu     sync.Mutex
	run    func(job *PrintJob, report func(Report)) error
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPrintQueue creates a queue whose single worker executes jobs with run.
// run emits outcomes through report and returns the job's failure, if any.
func NewPrintQueue(run func(job *PrintJob, report func(Report)) error) *PrintQueue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &PrintQueue{
		jobs:   make([]*PrintJob, 0),
		run:    run,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Enqueue adds a job and returns it together with the channel its reports
// arrive on. The channel is closed once the job has finished.
func (q *PrintQueue) Enqueue(items []printjob.Item) (*PrintJob, <-chan Report) {
	q.mu.Lock()

	job := &PrintJob{
		ID:        uuid.New().String(),
		Items:     items,
		Status:    JobQueued,
		CreatedAt: time.Now(),
		// an item reports at most once, plus one job level outcome
		reports: make(chan Report, len(items)+1),
	}
	q.jobs = append(q.jobs, job)

	jobCopy := *job
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return &jobCopy, job.reports
}

func (q *PrintQueue) worker() {
	defer q.wg.Done()

	for {
		for q.processNextJob() {
		}

		select {
		case <-q.ctx.Done():
			q.failPending()
			return
		case <-q.wake:
		}
	}
}

// processNextJob runs the oldest queued job and reports whether there was one
func (q *PrintQueue) processNextJob() bool {
	if q.ctx.Err() != nil {
		return false
	}

	q.mu.Lock()
	var job *PrintJob
	for _, j := range q.jobs {
		if j.Status == JobQueued {
			job = j
			job.Status = JobPrinting
			break
		}
	}
	q.mu.Unlock()

	if job == nil {
		return false
	}

	slog.Debug("print job started", "job", job.ID, "items", len(job.Items))

	err := q.run(job, func(r Report) {
		r.JobID = job.ID
		q.mu.Lock()
		job.Reports++
		q.mu.Unlock()
		job.reports <- r
	})

	q.mu.Lock()
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = JobFailed
		job.Error = err
	} else {
		job.Status = JobCompleted
	}
	q.mu.Unlock()
	close(job.reports)

	if err != nil {
		slog.Warn("print job failed", "job", job.ID, "error", err)
	} else {
		slog.Info("print job completed", "job", job.ID)
	}

	return true
}

func (q *PrintQueue) failPending() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.Status != JobQueued {
			continue
		}
		job.Status = JobFailed
		job.Error = ErrQueueStopped
		job.FinishedAt = time.Now()
		job.reports <- Report{JobID: job.ID, Item: -1, Err: ErrQueueStopped}
		close(job.reports)
	}
}

// GetJob returns a job by ID
func (q *PrintQueue) GetJob(jobID string) *PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.ID == jobID {
			jobCopy := *job
			return &jobCopy
		}
	}

	return nil
}

// GetAllJobs returns all jobs
func (q *PrintQueue) GetAllJobs() []*PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*PrintJob, len(q.jobs))
	for i, job := range q.jobs {
		jobCopy := *job
		jobs[i] = &jobCopy
	}

	return jobs
}

// ClearCompleted removes finished jobs from the queue
func (q *PrintQueue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*PrintJob, 0)
	for _, job := range q.jobs {
		if job.Status != JobCompleted && job.Status != JobFailed {
			filtered = append(filtered, job)
		}
	}

	removed := len(q.jobs) - len(filtered)
	q.jobs = filtered
	return removed
}

// Stop stops the print queue worker. A running job finishes first; jobs
// still queued fail with ErrQueueStopped.
func (q *PrintQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}
