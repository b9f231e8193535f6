package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"chat-companion/backend/pkg/logger"
)

// Status of a single dependency
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Component is the reported state of one checked dependency
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check probes one dependency
type Check func(ctx context.Context) error

type registration struct {
	check    Check
	critical bool
}

// Checker runs periodic probes against the engine's dependencies and
// answers readiness queries from their last observed state. The database
// is the only critical dependency; Redis dedup fails open, so a Redis
// outage degrades the report without failing it.
type Checker struct {
	checks     map[string]registration
	components map[string]*Component
	period     time.Duration
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewChecker creates a checker that re-probes every period
func NewChecker(log *logger.Logger, period time.Duration) *Checker {
	return &Checker{
		checks:     make(map[string]registration),
		components: make(map[string]*Component),
		period:     period,
		log:        log.WithComponent("health"),
	}
}

// Register adds a named check. Critical checks gate the overall status.
func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = registration{check: check, critical: critical}
	c.components[name] = &Component{
		Name:     name,
		Status:   StatusDown,
		Critical: critical,
	}
}

// RunChecks probes every registered dependency once
func (c *Checker) RunChecks(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, reg := range c.checks {
		component := c.components[name]
		component.LastChecked = time.Now().UTC()

		if err := reg.check(ctx); err != nil {
			component.Status = StatusDown
			component.Error = err.Error()
			c.log.Error("Health check failed", "component", name, "error", err.Error())
			continue
		}
		component.Status = StatusUp
		component.Error = ""
	}
}

// Start probes immediately and then on every tick until ctx is done
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// Healthy reports whether every critical dependency is up
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, component := range c.components {
		if component.Critical && component.Status != StatusUp {
			return false
		}
	}
	return true
}

// Snapshot copies the current component states
func (c *Checker) Snapshot() map[string]Component {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Component, len(c.components))
	for name, component := range c.components {
		result[name] = *component
	}
	return result
}

// Handler serves the readiness report. Critical failures answer 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Refresh on demand so probes see current state, not the last tick
		c.RunChecks(r.Context())

		status := "ok"
		code := http.StatusOK
		if !c.Healthy() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)

		response := map[string]interface{}{
			"status":     status,
			"timestamp":  time.Now().UTC(),
			"components": c.Snapshot(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			c.log.Error("Failed to encode health response", "error", err.Error())
		}
	}
}
