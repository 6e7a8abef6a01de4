package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, h *Health, p Probe) (int, response) {
	t.Helper()
	w := httptest.NewRecorder()
	h.Handler(p)(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

func runN(h *Health, name string, n int) {
	for _, c := range h.checks {
		if c.name == name {
			for range n {
				c.run(context.Background())
			}
		}
	}
}

func TestLiveness(t *testing.T) {
	tests := []struct {
		name   string
		runs   int
		status int
	}{
		{"StartsHealthy", 0, http.StatusOK},
		{"BelowThreshold", 2, http.StatusOK},
		{"AtThreshold", 3, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.Register(Liveness, "db", failing("connection refused"))
			runN(h, "db", tt.runs)

			code, body := probe(t, h, Liveness)
			assert.Equal(t, tt.status, code)
			if tt.status != http.StatusOK {
				assert.Equal(t, "unhealthy", body.Status)
				assert.Equal(t, "connection refused", body.Checks["db"])
			} else {
				assert.Equal(t, "ok", body.Status)
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	h := New()
	h.Register(Readiness, "postgres", passing)
	h.Register(Readiness, "redis", failing("dial tcp: refused"), WithThresholds(1, 2))

	code, body := probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = probe(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runN(h, "redis", 1)
	code, body = probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "redis")
	assert.NotContains(t, body.Checks, "postgres")

	// Readiness failures do not affect liveness.
	code, _ = probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckRecovery(t *testing.T) {
	down := true
	h := New()
	h.Register(Liveness, "flaky", func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(2, 2))

	runN(h, "flaky", 2)
	code, _ := probe(t, h, Liveness)
	require.Equal(t, http.StatusServiceUnavailable, code)

	down = false
	runN(h, "flaky", 1)
	code, _ = probe(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, code, "one pass is below the success threshold")

	runN(h, "flaky", 1)
	code, _ = probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.Register(Liveness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))

	runN(h, "slow", 1)
	_, body := probe(t, h, Liveness)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

func TestRunStopsWithContext(t *testing.T) {
	h := New()
	h.Register(Liveness, "live", passing)
	h.Register(Readiness, "ready", passing)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				w := httptest.NewRecorder()
				h.Handler(Readiness)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pinger{})(ctx))
	err := PingCheck(pinger{err: errors.New("refused")})(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	err = GoroutineCountCheck(0)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
