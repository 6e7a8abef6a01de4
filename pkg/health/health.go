// Package health serves liveness and readiness probes backed by periodic
// dependency checks.
//
// A check flips to unhealthy after FailureThreshold consecutive failures and
// back after SuccessThreshold consecutive passes, so a single slow ping does
// not take the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check contributes to.
type Probe int

// Probes.
const (
	Liveness Probe = iota
	Readiness
)

// Option tunes a registered check.
type Option func(*check)

// WithTimeout bounds a single check run. Default is one second.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithThresholds overrides the consecutive failure and success counts.
// Defaults are 3 and 1.
func WithThresholds(failures, successes int) Option {
	return func(c *check) {
		c.failureThreshold = failures
		c.successThreshold = successes
	}
}

type check struct {
	name             string
	probe            Probe
	fn               CheckFunc
	timeout          time.Duration
	failureThreshold int
	successThreshold int

	mu        sync.Mutex
	healthy   bool
	lastErr   error
	failures  int
	successes int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		c.successes = 0
		c.failures++
		if c.failures >= c.failureThreshold {
			c.healthy = false
		}
		return
	}
	c.failures = 0
	c.successes++
	if c.successes >= c.successThreshold {
		c.healthy = true
	}
}

// status returns "" when healthy, the failure otherwise.
func (c *check) status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.healthy:
		return ""
	case c.lastErr != nil:
		return c.lastErr.Error()
	default:
		return "check is unhealthy"
	}
}

// Health tracks registered checks and the draining flag.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Register adds a check. Checks start healthy. Register before Run.
func (h *Health) Register(probe Probe, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:             name,
		probe:            probe,
		fn:               fn,
		timeout:          time.Second,
		failureThreshold: 3,
		successThreshold: 1,
		healthy:          true,
	}
	for _, o := range opts {
		o(c)
	}

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Run executes every check immediately and then on each interval tick until
// ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	h.mu.RLock()
	checks := slices.Clone(h.checks)
	h.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

// SetReady marks the instance as accepting traffic or draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the instance is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// Handler serves the probe: 200 {"status":"ok"} or 503 with the failing
// checks.
func (h *Health) Handler(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		failures := h.failures(probe)
		if probe == Readiness && !h.ready.Load() {
			failures = append(failures, failure{name: "_readiness", reason: "service is not ready"})
		}
		write(w, failures)
	}
}

type failure struct {
	name   string
	reason string
}

func (h *Health) failures(probe Probe) []failure {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []failure
	for _, c := range h.checks {
		if c.probe != probe {
			continue
		}
		if reason := c.status(); reason != "" {
			out = append(out, failure{name: c.name, reason: reason})
		}
	}
	return out
}

func write(w http.ResponseWriter, failures []failure) {
	var e jx.Encoder
	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		for _, f := range failures {
			e.FieldStart(f.name)
			e.Str(f.reason)
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
