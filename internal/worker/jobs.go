package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("a batch job is already running")
)

// BatchJob is one asynchronous RunAll invocation.
type BatchJob struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	Result     *Result    `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Jobs runs batch updates in the background, one at a time, and remembers
// the most recent ones.
type Jobs struct {
	coordinator *Coordinator
	keep        int

	mu      sync.Mutex
	jobs    map[string]*BatchJob
	order   []string
	running bool
	wg      sync.WaitGroup
}

func NewJobs(c *Coordinator, keep int) *Jobs {
	return &Jobs{coordinator: c, keep: keep, jobs: make(map[string]*BatchJob)}
}

// Enqueue starts a batch run detached from ctx's cancellation. The job is
// pending until its goroutine picks it up.
func (j *Jobs) Enqueue(ctx context.Context) (BatchJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return BatchJob{}, ErrJobRunning
	}

	job := &BatchJob{ID: uuid.NewString(), Status: JobStatusPending, CreatedAt: time.Now().UTC()}
	j.jobs[job.ID] = job
	j.order = append(j.order, job.ID)
	j.running = true
	j.evict()

	runCtx := context.WithoutCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		started := time.Now().UTC()
		j.mu.Lock()
		job.Status = JobStatusRunning
		job.StartedAt = &started
		j.mu.Unlock()

		res := j.coordinator.RunAll(runCtx)
		finished := time.Now().UTC()

		j.mu.Lock()
		defer j.mu.Unlock()
		job.Result = &res
		job.FinishedAt = &finished
		job.Status = JobStatusDone
		if len(res.Success) == 0 && len(res.Failed) > 0 {
			job.Status = JobStatusFailed
		}
		j.running = false
	}()
	return *job, nil
}

func (j *Jobs) Get(id string) (BatchJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return BatchJob{}, ErrJobNotFound
	}
	return *job, nil
}

// Wait blocks until every started job has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

func (j *Jobs) evict() {
	for len(j.order) > j.keep {
		delete(j.jobs, j.order[0])
		j.order = j.order[1:]
	}
}
