// Package scheduler triggers the suspension reconciler periodically, through
// asynq when Redis is configured and an in-process ticker otherwise.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"messaging-service/internal/engine"
)

// TaskReconcile is the asynq task type of one reconciler sweep.
const TaskReconcile = "suspensions:reconcile"

const sweepTimeout = 2 * time.Minute

// Reconciler runs one sweep.
type Reconciler interface {
	Reconcile(ctx context.Context) (engine.ReconcileReport, error)
}

// Runner drives the reconciler until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// New picks the asynq runner when redisURL is set.
func New(redisURL string, interval time.Duration, r Reconciler) (Runner, error) {
	if redisURL == "" {
		log.Printf("scheduler: REDIS_URL empty, using ticker interval=%s", interval)
		return NewTicker(interval, r), nil
	}
	return NewAsynq(redisURL, interval, r)
}

// HandleReconcile adapts a Reconciler to an asynq task handler. Individual
// restore failures are logged by the sweep; only a failed scan is an error.
func HandleReconcile(r Reconciler) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		return sweep(ctx, r)
	}
}

func sweep(ctx context.Context, r Reconciler) error {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	report, err := r.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if report.Restored > 0 || report.Failed > 0 {
		log.Printf("reconcile scanned=%d restored=%d failed=%d", report.Scanned, report.Restored, report.Failed)
	}
	return nil
}

// Ticker runs sweeps in-process.
type Ticker struct {
	interval time.Duration
	r        Reconciler
}

// NewTicker builds a Ticker.
func NewTicker(interval time.Duration, r Reconciler) *Ticker {
	return &Ticker{interval: interval, r: r}
}

// Run sweeps once immediately and then every interval.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if err := sweep(ctx, t.r); err != nil {
			log.Printf("scheduler: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Asynq registers the sweep as a periodic task and processes it. Several
// replicas may run it; the unique option keeps one sweep per interval queued.
type Asynq struct {
	interval  time.Duration
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
}

// NewAsynq builds an Asynq runner against redisURL.
func NewAsynq(redisURL string, interval time.Duration, r Reconciler) (*Asynq, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.Handle(TaskReconcile, HandleReconcile(r))

	return &Asynq{
		interval:  interval,
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{"default": 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("asynq error: type=%s err=%v", task.Type(), err)
			}),
		}),
		mux: mux,
	}, nil
}

// Run starts the scheduler and worker and blocks until ctx is cancelled.
func (a *Asynq) Run(ctx context.Context) error {
	task := asynq.NewTask(TaskReconcile, nil)
	cronspec := fmt.Sprintf("@every %s", a.interval)
	if _, err := a.scheduler.Register(cronspec, task, asynq.MaxRetry(0), asynq.Unique(uniqueTTL(a.interval))); err != nil {
		return fmt.Errorf("asynq: register %s: %w", TaskReconcile, err)
	}
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("asynq: start scheduler: %w", err)
	}
	if err := a.server.Start(a.mux); err != nil {
		a.scheduler.Shutdown()
		return fmt.Errorf("asynq: start server: %w", err)
	}
	log.Printf("scheduler: asynq registered %s cronspec=%q", TaskReconcile, cronspec)

	<-ctx.Done()
	a.scheduler.Shutdown()
	a.server.Shutdown()
	return nil
}

// uniqueTTL must be at least one second for asynq.
func uniqueTTL(interval time.Duration) time.Duration {
	if interval < time.Second {
		return time.Second
	}
	return interval
}
