package wait

import (
	"context"
	"errors"
	"time"

	kwait "k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/metrics"
)

// ConditionFunc reports whether the awaited state has been reached. A returned
// error is fatal to the wait.
type ConditionFunc func(ctx context.Context) (bool, error)

// Config contains the timing and concurrency settings of a Poller
type Config struct {
	// Timeout bounds a single Await, and every task of an AwaitAll
	// Default: 60 seconds
	Timeout time.Duration

	// PollInterval is the fixed delay between two evaluations of a condition
	// Default: 1 second
	PollInterval time.Duration

	// MaxWorkers is the maximum number of concurrent workers used by AwaitAll
	// Default: 20
	MaxWorkers int

	// SequentialThreshold is the task count up to which AwaitAll runs tasks
	// in the calling goroutine
	// Default: 1
	SequentialThreshold int
}

// DefaultConfig returns the default poller configuration
func DefaultConfig() Config {
	return Config{
		Timeout:             60 * time.Second,
		PollInterval:        1 * time.Second,
		MaxWorkers:          20,
		SequentialThreshold: 1,
	}
}

// withDefaults fills unset fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.SequentialThreshold <= 0 {
		c.SequentialThreshold = def.SequentialThreshold
	}
	return c
}

// Poller waits for conditions to become true
type Poller struct {
	config Config
}

// NewPoller creates a poller. Zero-valued or negative settings take their
// defaults.
func NewPoller(config Config) *Poller {
	return &Poller{config: config.withDefaults()}
}

// Config returns the effective configuration
func (p *Poller) Config() Config {
	return p.config
}

// WithTimeout returns a copy of the poller using the given timeout.
// A non-positive timeout keeps the current one.
func (p *Poller) WithTimeout(timeout time.Duration) *Poller {
	cfg := p.config
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return &Poller{config: cfg}
}

// WithMaxWorkers returns a copy of the poller using the given worker bound.
// A non-positive value keeps the current one.
func (p *Poller) WithMaxWorkers(maxWorkers int) *Poller {
	cfg := p.config
	if maxWorkers > 0 {
		cfg.MaxWorkers = maxWorkers
	}
	return &Poller{config: cfg}
}

// Await blocks until condition returns true, condition returns an error, or
// the timeout elapses. The condition is evaluated immediately and then every
// PollInterval. description names what is awaited in logs and errors.
func (p *Poller) Await(ctx context.Context, description string, condition ConditionFunc) error {
	start := time.Now()
	err := p.await(ctx, description, condition)
	metrics.RecordWait(metrics.OperationAwait, metrics.ResultFor(err), time.Since(start).Seconds())
	return err
}

func (p *Poller) await(ctx context.Context, description string, condition ConditionFunc) error {
	start := time.Now()
	limit := p.config.Timeout
	if deadline, ok := ctx.Deadline(); ok && deadline.Sub(start) < limit {
		limit = max(deadline.Sub(start), 0)
	}

	logger := log.FromContext(ctx).WithValues("waitingFor", description, "timeout", limit)
	logger.V(1).Info("Waiting for condition")

	attempts := 0
	var conditionErr error

	err := kwait.PollUntilContextTimeout(ctx, p.config.PollInterval, p.config.Timeout, true,
		func(ctx context.Context) (bool, error) {
			attempts++
			done, err := condition(ctx)
			if err != nil {
				conditionErr = kubeerr.Translate(description, err)
				return false, conditionErr
			}
			if !done {
				logger.V(2).Info("Condition not met yet", "attempt", attempts)
			}
			return done, nil
		})

	elapsed := time.Since(start)
	switch {
	case err == nil:
		logger.V(1).Info("Condition met", "attempts", attempts, "elapsed", elapsed)
		return nil

	case conditionErr != nil && !(kubeerr.IsTimeout(conditionErr) && elapsed >= limit):
		logger.V(1).Info("Wait aborted", "attempts", attempts, "error", conditionErr.Error())
		return conditionErr

	case errors.Is(ctx.Err(), context.Canceled):
		return &kubeerr.Error{
			Kind:    kubeerr.Unknown,
			Op:      "await",
			Message: "wait for " + description + " was canceled",
		}

	default:
		logger.V(1).Info("Wait timed out", "attempts", attempts, "elapsed", elapsed)
		return kubeerr.Newf(kubeerr.Timeout,
			"timed out after %s waiting for %s (%d attempts)", limit.Round(time.Millisecond), description, attempts)
	}
}
