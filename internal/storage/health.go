package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// HealthData is the last known health of a storage backend.
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// Pinger is implemented by repositories that can check their connection.
type Pinger interface {
	Ping() error
}

// Check pings a backend and describes the outcome.
func Check(p Pinger, now time.Time) HealthData {
	h := HealthData{LastCheck: now, Status: "healthy", Message: "storage reachable"}
	if err := p.Ping(); err != nil {
		h.Status = "unhealthy"
		h.Message = "ping failed"
		h.Error = err.Error()
	}
	return h
}

// HealthManager manages storage health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]HealthData
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]HealthData),
	}
}

// UpdateHealth updates the health status for a storage backend
func (hm *HealthManager) UpdateHealth(backend string, h HealthData) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[backend] = h
}

// GetHealth retrieves the health status for a specific storage backend
func (hm *HealthManager) GetHealth(backend string) (HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	h, ok := hm.health[backend]
	return h, ok
}

// All returns a copy of every backend's health.
func (hm *HealthManager) All() map[string]HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	out := make(map[string]HealthData, len(hm.health))
	for k, v := range hm.health {
		out[k] = v
	}
	return out
}

// Healthy reports whether every known backend is healthy.
func (hm *HealthManager) Healthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	for _, h := range hm.health {
		if h.Status != "healthy" {
			return false
		}
	}
	return true
}

// Monitor checks a backend immediately and then on every interval until ctx
// is cancelled.
func (hm *HealthManager) Monitor(ctx context.Context, wg *sync.WaitGroup, backend string, p Pinger, interval time.Duration, clock clockwork.Clock, logger *zap.SugaredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		update := func() {
			h := Check(p, clock.Now())
			if prev, ok := hm.GetHealth(backend); !ok || prev.Status != h.Status {
				logger.Infow("storage health changed", "backend", backend, "status", h.Status, "error", h.Error)
			}
			hm.UpdateHealth(backend, h)
		}
		update()

		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				update()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", backend)
				return
			}
		}
	}()
}
