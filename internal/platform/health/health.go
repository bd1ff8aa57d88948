package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status global del servicio.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Estado de un check individual.
const (
	CheckOK      = "ok"
	CheckFail    = "fail"
	CheckSkipped = "skipped"
)

var ErrNotConfigured = errors.New("not configured")

// CheckFunc devuelve nil si la dependencia responde.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

type CheckResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Critical  bool   `json:"critical"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Report struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Aggregator junta el estado de las dependencias. Un check crítico caído
// deja el servicio "down"; cualquier otro fallo lo deja "degraded".
type Aggregator struct {
	mu      sync.RWMutex
	checks  []check
	timeout time.Duration
	now     func() time.Time
}

func New(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Aggregator{timeout: timeout, now: time.Now}
}

// Add registra un check. fn nil = dependencia no usada en este despliegue (skipped).
func (a *Aggregator) Add(name string, critical bool, fn CheckFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks = append(a.checks, check{name: name, critical: critical, fn: fn})
}

// Configured es un check para integraciones sin ping (Stripe, SMTP).
func Configured(ok bool) CheckFunc {
	return func(context.Context) error {
		if !ok {
			return ErrNotConfigured
		}
		return nil
	}
}

func (a *Aggregator) Run(ctx context.Context) Report {
	a.mu.RLock()
	checks := make([]check, len(a.checks))
	copy(checks, a.checks)
	a.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			results[i] = a.runOne(ctx, c)
		}(i, c)
	}
	wg.Wait()

	status := StatusOK
	for _, r := range results {
		if r.Status != CheckFail {
			continue
		}
		if r.Critical {
			status = StatusDown
			break
		}
		status = StatusDegraded
	}

	return Report{Status: status, Checks: results, CheckedAt: a.now().UTC()}
}

func (a *Aggregator) runOne(ctx context.Context, c check) CheckResult {
	res := CheckResult{Name: c.name, Critical: c.critical}
	if c.fn == nil {
		res.Status = CheckSkipped
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	err := c.fn(ctx)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = CheckFail
		res.Error = err.Error()
		return res
	}
	res.Status = CheckOK
	return res
}
