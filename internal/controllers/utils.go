package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// NewHTTPClient creates a standardized HTTP client with timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// ValidateRequiredFields checks that required configuration fields are set
func ValidateRequiredFields(fields map[string]string) error {
	for fieldName, fieldValue := range fields {
		if fieldValue == "" {
			return fmt.Errorf("%s must be set", fieldName)
		}
	}
	return nil
}

// PeriodicTask represents a periodic task configuration
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the task once before the first tick.
	RunAtStart bool
	Task       func(ctx context.Context) error
}

// RunPeriodicTask runs a task periodically until context is cancelled
func RunPeriodicTask(ctx context.Context, clock clockwork.Clock, task PeriodicTask, logger *zap.SugaredLogger) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger.Infof("Starting periodic task: %s (interval: %v)", task.Name, task.Interval)

	run := func() {
		if err := task.Task(ctx); err != nil {
			logger.Errorf("Error in periodic task %s: %v", task.Name, err)
		}
	}

	if task.RunAtStart {
		run()
	}

	ticker := clock.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			run()
		case <-ctx.Done():
			logger.Infof("Stopping periodic task: %s", task.Name)
			return
		}
	}
}
