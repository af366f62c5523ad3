// Package health tracks whether the indexer's backing services answer and
// serves that as the liveness and readiness endpoints of the metrics server.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const pingTimeout = 3 * time.Second

// Pinger is a backing service the indexer cannot work without, such as the
// index store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to a Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Dependency is the outcome of pinging one service.
type Dependency struct {
	Name      string `json:"name"`
	Up        bool   `json:"up"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Readiness lists every dependency, sorted by name. Ready is set when all of
// them are up.
type Readiness struct {
	Ready        bool         `json:"ready"`
	Dependencies []Dependency `json:"dependencies"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// Checker pings the registered dependencies. It logs when readiness flips so
// an outage shows up once in the logs, not on every request.
type Checker struct {
	mu        sync.Mutex
	deps      map[string]Pinger
	lastReady bool
	logger    *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		deps:      make(map[string]Pinger),
		lastReady: true,
		logger:    slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the dependency called name.
func (c *Checker) Register(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[name] = p
}

// Check pings every dependency in parallel, each bounded by its own timeout.
func (c *Checker) Check(ctx context.Context) Readiness {
	c.mu.Lock()
	names := make([]string, 0, len(c.deps))
	for name := range c.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	pingers := make([]Pinger, len(names))
	for i, name := range names {
		pingers[i] = c.deps[name]
	}
	c.mu.Unlock()

	deps := make([]Dependency, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			deps[i] = ping(ctx, names[i], pingers[i])
			return nil
		})
	}
	_ = g.Wait()

	r := Readiness{Ready: true, Dependencies: deps, CheckedAt: time.Now().UTC()}
	for _, d := range deps {
		if !d.Up {
			r.Ready = false
		}
	}
	c.observe(r)
	return r
}

func ping(ctx context.Context, name string, p Pinger) Dependency {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	start := time.Now()
	err := p.Ping(ctx)
	d := Dependency{Name: name, Up: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}

func (c *Checker) observe(r Readiness) {
	c.mu.Lock()
	changed := r.Ready != c.lastReady
	c.lastReady = r.Ready
	c.mu.Unlock()
	if !changed {
		return
	}
	if r.Ready {
		c.logger.Info("dependencies reachable again")
		return
	}
	for _, d := range r.Dependencies {
		if !d.Up {
			c.logger.Warn("dependency unreachable", "dependency", d.Name, "error", d.Error)
		}
	}
}

// LiveHandler answers as long as the process serves HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 when every dependency is up and 503 otherwise.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := c.Check(r.Context())
		status := http.StatusOK
		if !readiness.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readiness)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
