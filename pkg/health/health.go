// Package health serves liveness and readiness probes backed by periodic
// background checks.
//
// A check flips to unhealthy after FailureThreshold consecutive failures and
// back to healthy after SuccessThreshold consecutive passes, so a single slow
// upstream response does not take the pod out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check contributes to.
type Probe uint8

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Probe = iota
	// Readiness checks decide whether the process should receive traffic.
	Readiness
)

func (p Probe) String() string {
	if p == Readiness {
		return "readiness"
	}
	return "liveness"
}

// check is one registered CheckFunc and its state. fails and oks are touched
// only by the goroutine calling run; healthy and lastErr are read by
// handlers.
type check struct {
	name    string
	probe   Probe
	timeout time.Duration
	fn      CheckFunc

	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func (c *check) isHealthy() bool { return c.healthy.Load() }

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the check once and applies the thresholds.
func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	lg := zctx.From(ctx).With(zap.String("check", c.name), zap.Stringer("probe", c.probe))
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= c.failureThreshold && c.healthy.Swap(false) {
			lg.Warn("Health check failing", zap.Int("failures", c.fails), zap.Error(err))
		}
		return
	}

	c.fails = 0
	c.oks++
	if c.oks >= c.successThreshold && !c.healthy.Swap(true) {
		lg.Info("Health check recovered")
	}
}

// Option configures Health.
type Option func(*Health)

// WithThresholds overrides the consecutive failure and success counts needed
// to flip a check. Defaults are 3 and 1.
func WithThresholds(failure, success int) Option {
	return func(h *Health) {
		if failure > 0 {
			h.failureThreshold = failure
		}
		if success > 0 {
			h.successThreshold = success
		}
	}
}

// Health tracks registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	failureThreshold int
	successThreshold int

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Health that reports not ready until SetReady(true).
func New(opts ...Option) *Health {
	h := &Health{
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Health) add(p Probe, name string, timeout time.Duration, fn CheckFunc) {
	c := &check{
		name:             name,
		probe:            p,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: h.failureThreshold,
		successThreshold: h.successThreshold,
	}
	// Healthy until proven otherwise.
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// AddLivenessCheck registers a liveness check bounded by timeout.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(Liveness, name, timeout, fn)
}

// AddReadinessCheck registers a readiness check bounded by timeout.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(Readiness, name, timeout, fn)
}

// Start runs every registered check immediately and then every interval, one
// goroutine per check, until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			loop(ctx, c, interval)
		}()
	}
}

func loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the check goroutines and waits for them to exit. It is safe
// to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// SetReady sets the manual readiness flag.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the manual flag combined with all readiness checks.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// failures returns the failing checks of probe p by name.
func (h *Health) failures(p Probe) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, c := range h.checks {
		if c.probe != p || c.isHealthy() {
			continue
		}
		msg := "check is unhealthy"
		if err := c.lastError(); err != nil {
			msg = err.Error()
		}
		out[c.name] = msg
	}
	return out
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} or 503 with the failing
// checks.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz. The service must be marked ready and every
// readiness check must pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("status")
		if len(failures) == 0 {
			e.Str("ok")
			return
		}
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.Obj(func(e *jx.Encoder) {
			names := make([]string, 0, len(failures))
			for name := range failures {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				e.FieldStart(name)
				e.Str(failures[name])
			}
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
