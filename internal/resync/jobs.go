package resync

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a background resync.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobCancelled JobState = "cancelled"
	JobFailed    JobState = "failed"
)

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	ID         string     `json:"id"`
	GuildID    string     `json:"guild_id"`
	State      JobState   `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Report     Report     `json:"report"`
}

// Job is a resync running in the background.
type Job struct {
	id        string
	guildID   string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	progress  *progress

	mu         sync.Mutex
	state      JobState
	finishedAt *time.Time
	err        error
}

// ID returns the job id.
func (j *Job) ID() string { return j.id }

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns the job's current state and report.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := JobStatus{
		ID:         j.id,
		GuildID:    j.guildID,
		State:      j.state,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Report:     j.progress.Snapshot(),
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

func (j *Job) finish(err error, cancelled bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.finishedAt = &now
	switch {
	case cancelled:
		j.state = JobCancelled
	case err != nil:
		j.state = JobFailed
		j.err = err
	default:
		j.state = JobCompleted
	}
}

// DefaultKeepFinished is how many finished jobs a registry remembers.
const DefaultKeepFinished = 20

// Jobs runs resyncs in the background and keeps the reports of the most
// recently finished ones.
type Jobs struct {
	orch *Orchestrator
	base context.Context
	keep int

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewJobs creates a registry. Jobs run under base, so cancelling base
// cancels every job.
func NewJobs(base context.Context, orch *Orchestrator) *Jobs {
	return &Jobs{
		orch: orch,
		base: base,
		keep: DefaultKeepFinished,
		jobs: make(map[string]*Job),
	}
}

// KeepFinished sets how many finished jobs are remembered. Running jobs are
// always kept. Non-positive values fall back to DefaultKeepFinished.
func (r *Jobs) KeepFinished(n int) *Jobs {
	if n <= 0 {
		n = DefaultKeepFinished
	}
	r.mu.Lock()
	r.keep = n
	r.mu.Unlock()
	return r
}

// Start launches a resync and returns immediately.
func (r *Jobs) Start(req Request) *Job {
	ctx, cancel := context.WithCancel(r.base)
	job := &Job{
		id:        uuid.NewString(),
		guildID:   req.GuildID,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		progress:  newProgress(req.GuildID),
		state:     JobRunning,
	}

	r.mu.Lock()
	r.jobs[job.id] = job
	r.mu.Unlock()

	log.Printf("🚀 Started resync job %s for guild %s", job.id, req.GuildID)
	go func() {
		defer close(job.done)
		defer cancel()
		err := r.orch.run(ctx, req, job.progress)
		job.finish(err, ctx.Err() != nil)
		log.Printf("📋 Resync job %s %s", job.id, job.Status().State)
		r.prune()
	}()
	return job
}

// prune forgets the oldest finished jobs beyond the retention limit.
func (r *Jobs) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, j := range r.jobs {
		j.mu.Lock()
		if j.finishedAt != nil {
			done = append(done, finished{id: id, at: *j.finishedAt})
		}
		j.mu.Unlock()
	}
	if len(done) <= r.keep {
		return
	}

	sort.Slice(done, func(i, k int) bool { return done[i].at.Before(done[k].at) })
	for _, f := range done[:len(done)-r.keep] {
		delete(r.jobs, f.id)
	}
	log.Printf("🧹 Forgot %d finished resync jobs", len(done)-r.keep)
}

// Get looks up a job by id.
func (r *Jobs) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// List returns every job, newest first.
func (r *Jobs) List() []JobStatus {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Status())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	return out
}

// Cancel stops a running job. It reports false if the id is unknown.
func (r *Jobs) Cancel(id string) bool {
	job, ok := r.Get(id)
	if !ok {
		return false
	}
	job.cancel()
	log.Printf("🛑 Cancelling resync job %s", id)
	return true
}
