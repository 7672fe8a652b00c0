package scheduling

import (
	"context"
	"crypto/sha1"
	"encoding/hex"

	logx "jobsched/pkg/logx"
)

// overlapGuard holds the job's mutex from the before-run decision until
// after-complete.
type overlapGuard struct {
	// oneServer requires a mutex that other hosts can see.
	oneServer bool
}

// mutexKey names the lock after the description, which is the part of a job
// a person keeps stable across edits.
func mutexKey(description string) string {
	sum := sha1.Sum([]byte(description))
	return idPrefix + hex.EncodeToString(sum[:])
}

func (g *overlapGuard) acquire(ctx context.Context, c *jobCore) Decision {
	m := c.env.mutex
	if m == nil {
		c.env.log.Warn("overlap guard has no mutex", logx.String("job", c.description))
		return skip("no mutex")
	}
	key := mutexKey(c.description)
	ok, err := m.Acquire(ctx, key)
	if err != nil {
		c.env.log.Warn("mutex acquire failed", logx.String("job", c.description), logx.String("key", key), logx.Err(err))
		return skip("mutex: " + err.Error())
	}
	if !ok {
		c.env.log.Debug("job still running elsewhere", logx.String("job", c.description), logx.String("key", key))
		return skip("overlapping")
	}
	return proceed()
}

func (g *overlapGuard) release(ctx context.Context, c *jobCore) {
	if c.env.mutex == nil {
		return
	}
	key := mutexKey(c.description)
	if err := c.env.mutex.Release(ctx, key); err != nil {
		c.env.log.Warn("mutex release failed", logx.String("job", c.description), logx.String("key", key), logx.Err(err))
	}
}

// checkMutex reports a guard whose requirements the bound mutex cannot meet.
func (g *overlapGuard) checkMutex(c *jobCore) error {
	m := c.env.mutex
	if m == nil {
		return configError("job %q prevents overlapping but no mutex is configured", c.description)
	}
	if g.oneServer && !m.Distributed() {
		return configError("job %q runs on one server but the mutex is local to this host", c.description)
	}
	return nil
}

// WithoutOverlapping skips a run while the previous one still holds the job's
// lock. A description must be set first; it names the lock.
func (b *base[J]) WithoutOverlapping() J {
	if b.description == "" {
		b.record(configError("a description is required to prevent overlapping; call Description before WithoutOverlapping"))
		return b.self
	}
	if b.guard == nil {
		b.guard = &overlapGuard{}
	}
	return b.self
}

// OnOneServer is WithoutOverlapping with a mutex shared by every host that
// runs the schedule.
func (b *base[J]) OnOneServer() J {
	b.WithoutOverlapping()
	if b.guard == nil {
		return b.self
	}
	b.guard.oneServer = true
	if b.env.mutex != nil {
		b.record(b.guard.checkMutex(&b.jobCore))
	}
	return b.self
}

// PreventsOverlapping reports whether the job runs under the overlap guard.
func (c *jobCore) PreventsOverlapping() bool { return c.guard != nil }

// RunsOnOneServer reports whether the guard needs a distributed mutex.
func (c *jobCore) RunsOnOneServer() bool { return c.guard != nil && c.guard.oneServer }
