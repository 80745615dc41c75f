package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentQueries is the maximum number of catalog scans running at once.
	// If 0, scans are not bounded.
	MaxConcurrentQueries int64

	// MaxLoadWorkers is the number of blobs fetched concurrently while loading a catalog.
	// If 0, defaults to 8.
	MaxLoadWorkers int

	// IOLimitBytesPerSec is the maximum write throughput for index builds.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller bounds query concurrency and build IO.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	querySem *semaphore.Weighted // nil if unbounded
	inFlight atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxLoadWorkers <= 0 {
		cfg.MaxLoadWorkers = 8
	}

	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireQuery reserves a query slot.
// Blocks until a slot is free or ctx is canceled.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	c.inFlight.Add(1)
	return nil
}

// TryAcquireQuery reserves a query slot without blocking.
func (c *Controller) TryAcquireQuery() bool {
	if c == nil {
		return true
	}

	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return false
	}

	c.inFlight.Add(1)
	return true
}

// ReleaseQuery releases a query slot.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}

	if c.querySem != nil {
		c.querySem.Release(1)
	}
	c.inFlight.Add(-1)
}

// InFlight returns the number of queries currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// LoadWorkers returns the concurrency used for catalog loads.
func (c *Controller) LoadWorkers() int {
	if c == nil {
		return 8
	}
	return c.cfg.MaxLoadWorkers
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are split into burst-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
