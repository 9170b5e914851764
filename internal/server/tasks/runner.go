// Package tasks runs periodic background jobs such as the expiry sweep.
package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/logging"
)

// Job is a named function run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner executes registered jobs, each in its own goroutine. A job never
// overlaps with itself.
type Runner struct {
	logger  logging.Logger
	jobs    []Job
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Int32
	active  sync.Map
}

func New(logger logging.Logger) *Runner {
	return &Runner{logger: logger.With("module", "tasks")}
}

func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start launches every job. Each one runs once right away and then on its
// interval until ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info(ctx, "background task runner started", "jobs", len(r.jobs))
}

// Stop cancels all jobs and waits for them until ctx is done.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info(ctx, "background task runner stopped")
		return nil
	case <-ctx.Done():
		var names []string
		r.active.Range(func(k, _ any) bool {
			names = append(names, k.(string))
			return true
		})
		r.logger.Warn(ctx, "background task runner shutdown timed out", "still_running", names, "count", r.running.Load())
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, job)
		}
	}
}

func (r *Runner) execute(ctx context.Context, job Job) {
	r.running.Add(1)
	r.active.Store(job.Name, struct{}{})
	defer func() {
		r.running.Add(-1)
		r.active.Delete(job.Name)
	}()

	started := time.Now()
	err := job.Run(ctx)
	switch {
	case err == nil:
		r.logger.Debug(ctx, "job completed", "job", job.Name, "duration", time.Since(started))
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		r.logger.Debug(ctx, "job cancelled", "job", job.Name)
	default:
		r.logger.Error(ctx, "job failed", "job", job.Name, "duration", time.Since(started), "error", err)
	}
}

// RunOnce runs the named job synchronously. It reports false when no job has that name.
func (r *Runner) RunOnce(ctx context.Context, name string) (bool, error) {
	for _, job := range r.jobs {
		if job.Name == name {
			return true, job.Run(ctx)
		}
	}
	return false, nil
}
