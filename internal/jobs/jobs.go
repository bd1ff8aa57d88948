package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tailtribe/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

var ErrUnknownJob = errors.New("unknown job")

const (
	JobBookingReminders = "booking-reminders"
	JobExpirePending    = "expire-pending"
	JobPurgeChallenges  = "purge-challenges"

	defaultTimeout = 5 * time.Minute
)

// Func procesa un lote y devuelve cuántos elementos tocó.
type Func func(ctx context.Context) (int, error)

type Result struct {
	Job       string
	Processed int
	Duration  time.Duration
}

type job struct {
	spec string
	fn   Func
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Runner ejecuta jobs por nombre (endpoint /cron) y, si se arranca,
// también según su spec de cron.
type Runner struct {
	mu      sync.Mutex
	jobs    map[string]job
	running map[string]bool
	sched   *cron.Cron
	log     logger.Logger
	timeout time.Duration
}

func NewRunner(loc *time.Location, log logger.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		jobs:    make(map[string]job),
		running: make(map[string]bool),
		sched:   cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
		log:     log,
		timeout: defaultTimeout,
	}
}

// Add registra un job. spec usa la sintaxis de robfig/cron (segundos opcionales, @every, @hourly...).
func (r *Runner) Add(name, spec string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("jobs: invalid job %q", name)
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("jobs: %s: bad spec %q: %w", name, spec, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[name] = job{spec: spec, fn: fn}
	return nil
}

func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run ejecuta un job ya. Si la misma instancia lo está corriendo, no lo solapa.
func (r *Runner) Run(ctx context.Context, name string) (res Result, err error) {
	r.mu.Lock()
	j, ok := r.jobs[name]
	if !ok {
		r.mu.Unlock()
		return Result{}, ErrUnknownJob
	}
	if r.running[name] {
		r.mu.Unlock()
		r.log.Info("job skipped, still running", map[string]any{"job": name})
		return Result{Job: name}, nil
	}
	r.running[name] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, name)
		r.mu.Unlock()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("jobs: %s panicked: %v", name, rec)
			r.log.Error("job panic", map[string]any{"job": name, "panic": fmt.Sprint(rec)})
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.fn(ctx)
	res = Result{Job: name, Processed: n, Duration: time.Since(start)}

	fields := map[string]any{"job": name, "processed": n, "duration_ms": res.Duration.Milliseconds()}
	if err != nil {
		fields["error"] = err
		r.log.Error("job failed", fields)
		return res, err
	}
	r.log.Info("job done", fields)
	return res, nil
}

// Start programa todos los jobs registrados en el scheduler in-process.
func (r *Runner) Start() error {
	for _, name := range r.Names() {
		r.mu.Lock()
		spec := r.jobs[name].spec
		r.mu.Unlock()

		jobName := name
		if _, err := r.sched.AddFunc(spec, func() {
			_, _ = r.Run(context.Background(), jobName)
		}); err != nil {
			return fmt.Errorf("jobs: schedule %s: %w", name, err)
		}
	}
	r.sched.Start()
	r.log.Info("scheduler started", map[string]any{"jobs": r.Names()})
	return nil
}

// Stop detiene el scheduler; el contexto devuelto termina cuando acaban los jobs en curso.
func (r *Runner) Stop() context.Context {
	return r.sched.Stop()
}

type BookingJobs interface {
	SendReminders(ctx context.Context) (int, error)
	ExpireStalePending(ctx context.Context) (int, error)
}

type ChallengePurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// RegisterDefaults registra los jobs de mantenimiento del marketplace.
func RegisterDefaults(r *Runner, b BookingJobs, tf ChallengePurger) error {
	if b != nil {
		if err := r.Add(JobBookingReminders, "@every 15m", b.SendReminders); err != nil {
			return err
		}
		if err := r.Add(JobExpirePending, "0 0 * * * *", b.ExpireStalePending); err != nil {
			return err
		}
	}
	if tf != nil {
		if err := r.Add(JobPurgeChallenges, "0 30 3 * * *", tf.PurgeExpired); err != nil {
			return err
		}
	}
	return nil
}
