package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/newsletter/internal/pkg/httputil"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger wraps a go-redis client's PING.
type RedisPinger func(ctx context.Context) error

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker reports liveness and dependency readiness. Any dependency
// may be nil; it is then reported as not_configured.
type HealthChecker struct {
	db        Pinger
	redis     RedisPinger
	startTime time.Time
	timeout   time.Duration
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db Pinger, redis RedisPinger) *HealthChecker {
	return &HealthChecker{
		db:        db,
		redis:     redis,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// HandleLiveness returns 200 while the process is serving.
//
//	GET /healthz
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(hc.startTime).Round(time.Second).String(),
	})
}

// HandleReadiness pings every configured dependency and returns 503 when
// any of them is down.
//
//	GET /healthz/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	ready := true
	for _, c := range checks {
		if c.Status == "down" {
			ready = false
		}
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	probes := map[string]func(context.Context) error{}
	if hc.db != nil {
		probes["database"] = hc.db.PingContext
	}
	if hc.redis != nil {
		probes["redis"] = hc.redis
	}

	checks := map[string]ComponentCheck{
		"database": {Status: "not_configured"},
		"redis":    {Status: "not_configured"},
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe func(context.Context) error) {
			defer wg.Done()
			c := hc.check(ctx, probe)
			mu.Lock()
			checks[name] = c
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return checks
}

func (hc *HealthChecker) check(ctx context.Context, probe func(context.Context) error) ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	latency := time.Since(start).Round(time.Microsecond).String()
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency, Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: latency}
}
