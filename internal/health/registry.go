package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Checker reports whether a dependency is reachable
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a ping function to Checker
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Status values reported per dependency and overall
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Report is the aggregated result of a health pass
type Report struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// Registry manages named health checkers
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	critical map[string]bool
	timeout  time.Duration
}

// NewRegistry creates a new health registry
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Registry{
		checkers: make(map[string]Checker),
		critical: make(map[string]bool),
		timeout:  timeout,
	}
}

// Register adds a checker. A failing critical checker makes the report unhealthy;
// any other failure only degrades it.
func (r *Registry) Register(name string, checker Checker, critical bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
	r.critical[name] = critical
}

// Get retrieves a checker by name
func (r *Registry) Get(name string) Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkers[name]
}

// List returns all registered checker names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a checker from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkers, name)
	delete(r.critical, name)
}

// HealthCheckAll runs every checker concurrently, each bounded by the registry timeout
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]error, len(checkers))
	)
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			err := c.HealthCheck(cctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	return results
}

// Check runs all checkers and folds the results into a Report
func (r *Registry) Check(ctx context.Context) Report {
	results := r.HealthCheckAll(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	report := Report{
		Status:   StatusHealthy,
		Services: make(map[string]string, len(results)),
	}
	for name, err := range results {
		if err == nil {
			report.Services[name] = StatusHealthy
			continue
		}
		report.Services[name] = StatusUnhealthy
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors[name] = err.Error()

		if r.critical[name] {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}
