package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/transcript"
)

// JobStatus is the lifecycle state of an asynchronous transcription.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Done reports whether the job has finished.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Job is a snapshot of an asynchronous transcription.
type Job struct {
	ID         string             `json:"id"`
	Status     JobStatus          `json:"status"`
	Request    TranscribeRequest  `json:"request"`
	Result     *transcript.Result `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorCode  errors.ErrorCode   `json:"error_code,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// snapshot copies j so callers cannot reach the stored result.
func (j *Job) snapshot() Job {
	s := *j
	if j.Result != nil {
		r := j.Result.Clone()
		s.Result = &r
	}
	return s
}

// Submit validates req and queues it for background transcription. It
// blocks while the queue is full and returns the queued job. Jobs that
// finished more than Config.JobRetention ago are dropped first.
func (o *Orchestrator) Submit(ctx context.Context, req TranscribeRequest) (Job, error) {
	r, err := o.prepare(req.Request)
	if err != nil {
		return Job{}, err
	}
	req.Request = r

	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobQueued,
		Request:   req,
		CreatedAt: o.now(),
	}
	o.jobsMu.Lock()
	pruned := o.pruneJobsLocked()
	o.jobs[job.ID] = job
	snapshot := *job
	o.jobsMu.Unlock()
	if pruned > 0 {
		o.log.Debug("expired jobs dropped", logger.Fields("count", pruned))
	}
	o.notify(snapshot)

	if err := o.queue.Publish(ctx, job.ID); err != nil {
		o.jobsMu.Lock()
		delete(o.jobs, job.ID)
		o.jobsMu.Unlock()
		return Job{}, err
	}

	o.log.Info("transcription job queued", logger.Fields(
		logger.FieldJobID, job.ID,
		"audio_path", r.AudioPath,
	))
	return snapshot, nil
}

// pruneJobsLocked removes jobs that finished before the retention window.
// The caller holds jobsMu.
func (o *Orchestrator) pruneJobsLocked() int {
	cutoff := o.now().Add(-o.cfg.JobRetention)
	n := 0
	for id, job := range o.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(o.jobs, id)
			n++
		}
	}
	return n
}

// Job returns a snapshot of the job with the given id.
func (o *Orchestrator) Job(id string) (Job, error) {
	o.jobsMu.RLock()
	defer o.jobsMu.RUnlock()
	job, ok := o.jobs[id]
	if !ok {
		return Job{}, errors.NotFound("job", id)
	}
	return job.snapshot(), nil
}

// Jobs returns snapshots of all jobs, oldest first.
func (o *Orchestrator) Jobs() []Job {
	o.jobsMu.RLock()
	out := make([]Job, 0, len(o.jobs))
	for _, job := range o.jobs {
		out = append(out, job.snapshot())
	}
	o.jobsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// runJob is the work queue handler. Failures are recorded on the job and
// returned so the queue counts them.
func (o *Orchestrator) runJob(ctx context.Context, id string) error {
	job, ok := o.updateJob(id, func(j *Job) {
		now := o.now()
		j.Status = JobRunning
		j.StartedAt = &now
	})
	if !ok {
		return errors.NotFound("job", id)
	}

	if o.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.JobTimeout)
		defer cancel()
	}

	result, err := o.Transcribe(ctx, job.Request)
	o.updateJob(id, func(j *Job) {
		now := o.now()
		j.FinishedAt = &now
		switch {
		case err == nil:
			j.Status = JobSucceeded
			j.Result = result
		case errors.HasCode(err, errors.ErrCodeCancelled):
			j.Status = JobCancelled
		default:
			j.Status = JobFailed
		}
		if err != nil {
			j.Error = err.Error()
			if appErr, ok := errors.AsAppError(err); ok {
				j.ErrorCode = appErr.Code
			}
		}
	})

	fields := logger.Fields(logger.FieldJobID, id)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		o.log.Warn("transcription job failed", fields)
		return err
	}
	o.log.Info("transcription job finished", fields)
	return nil
}

// updateJob applies fn to the stored job, notifies the observer and
// returns the new snapshot.
func (o *Orchestrator) updateJob(id string, fn func(*Job)) (Job, bool) {
	o.jobsMu.Lock()
	job, ok := o.jobs[id]
	if !ok {
		o.jobsMu.Unlock()
		return Job{}, false
	}
	fn(job)
	snapshot := job.snapshot()
	o.jobsMu.Unlock()

	o.notify(snapshot)
	return snapshot, true
}

// notify passes a job snapshot to Deps.OnJobUpdate.
func (o *Orchestrator) notify(job Job) {
	if o.deps.OnJobUpdate != nil {
		o.deps.OnJobUpdate(job)
	}
}
