package scheduling

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"jobsched/internal/cronexpr"
	"jobsched/internal/mutex"
	"jobsched/internal/notify"
	"jobsched/internal/process"
	logx "jobsched/pkg/logx"
)

// idPrefix namespaces job ids and overlap keys.
const idPrefix = "jobsched/schedule-"

// Job is a scheduled unit of work: a *ShellJob or a *CallbackJob.
type Job interface {
	// ID is derived from the expression and the work item, so it is stable
	// across invocations that build the same schedule.
	ID() string
	Expression() cronexpr.Expression
	Location() *time.Location
	IsDue(now time.Time) bool
	FiltersPass() bool
	SummaryForDisplay() string
	Run(ctx context.Context) RunResult
	// Err reports builder mistakes recorded while the job was configured.
	Err() error
	Label() string
	PreventsOverlapping() bool

	core() *jobCore
}

// Outcome is how a Run call ended.
type Outcome string

const (
	Completed Outcome = "completed"
	Skipped   Outcome = "skipped"
	// Detached means a background process was launched; its completion
	// arrives later through Finish.
	Detached Outcome = "detached"
)

// RunResult describes one Run call. Err carries execution failures that the
// job swallowed (a callback error, a launch failure); it never aborts the caller.
type RunResult struct {
	Outcome Outcome
	Reason  string
	Err     error
}

// Decision is the before-run verdict.
type Decision struct {
	Proceed bool
	Reason  string
}

func proceed() Decision           { return Decision{Proceed: true} }
func skip(reason string) Decision { return Decision{Reason: reason} }

// Hook runs around a job.
type Hook func(ctx context.Context)

// env is what a job borrows from its schedule.
type env struct {
	mutex    mutex.Mutex
	dialect  Dialect
	runner   process.Runner
	notifier notify.Notifier
	pinger   notify.Pinger
	location *time.Location
	// finish is the command prefix that routes a completion back to this
	// program; empty when the job is not bound to a schedule.
	finish string
	log    logx.Logger
}

func standaloneEnv() *env {
	return &env{
		dialect:  HostDialect(),
		runner:   process.NewExec(),
		notifier: notify.Discard{},
		pinger:   notify.Discard{},
		location: time.Local,
		log:      logx.Nop(),
	}
}

// jobCore is the state shared by every job variant.
type jobCore struct {
	expr        cronexpr.Expression
	loc         *time.Location
	filters     []func() bool
	rejects     []func() bool
	description string
	omitErrors  bool
	guard       *overlapGuard
	before      []Hook
	after       []Hook
	err         error
	env         *env
}

func newJobCore() jobCore {
	return jobCore{expr: cronexpr.Default(), env: standaloneEnv()}
}

func (c *jobCore) core() *jobCore { return c }

func (c *jobCore) record(err error) {
	if err != nil {
		c.err = errors.Join(c.err, err)
	}
}

// Err returns every builder mistake recorded so far, or nil.
func (c *jobCore) Err() error { return c.err }

func (c *jobCore) Expression() cronexpr.Expression { return c.expr }

// Label returns the description, possibly empty.
func (c *jobCore) Label() string { return c.description }

// Location is the timezone the expression is evaluated in.
func (c *jobCore) Location() *time.Location {
	if c.loc != nil {
		return c.loc
	}
	if c.env.location != nil {
		return c.env.location
	}
	return time.Local
}

// IsDue reports whether the expression fires in the minute containing now,
// read on the wall clock of the job's timezone.
func (c *jobCore) IsDue(now time.Time) bool {
	due, err := cronexpr.IsDue(c.expr, now.In(c.Location()))
	if err != nil {
		c.env.log.Warn("cron expression rejected", logx.String("expr", c.expr.String()), logx.Err(err))
		return false
	}
	return due
}

// FiltersPass evaluates rejects first, then filters, stopping at the first
// predicate that decides.
func (c *jobCore) FiltersPass() bool {
	for _, reject := range c.rejects {
		if reject() {
			return false
		}
	}
	for _, filter := range c.filters {
		if !filter() {
			return false
		}
	}
	return true
}

// beforeRun decides whether the body may start. A proceed decision with an
// overlap guard means the lock is now held and afterComplete must follow.
func (c *jobCore) beforeRun(ctx context.Context) Decision {
	if c.err != nil {
		return skip("misconfigured: " + c.err.Error())
	}
	if c.guard != nil {
		if d := c.guard.acquire(ctx, c); !d.Proceed {
			return d
		}
	}
	for _, h := range c.before {
		h(ctx)
	}
	return proceed()
}

// afterComplete frees the overlap lock before running the then hooks, so a
// hook that panics cannot keep the lock.
func (c *jobCore) afterComplete(ctx context.Context) {
	if c.guard != nil {
		c.guard.release(ctx, c)
	}
	for _, h := range c.after {
		h(ctx)
	}
}

func (c *jobCore) deriveID(parts ...string) string {
	h := sha1.New()
	h.Write([]byte(c.expr.String()))
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return idPrefix + hex.EncodeToString(h.Sum(nil))
}

// base adds the fluent builder to a job variant. J is the variant's pointer
// type so that chained calls keep returning it.
type base[J any] struct {
	jobCore
	self J
}

func (b *base[J]) When(pred func() bool) J {
	if pred == nil {
		b.record(argumentError("when: nil predicate"))
		return b.self
	}
	b.filters = append(b.filters, pred)
	return b.self
}

func (b *base[J]) WhenBool(v bool) J {
	return b.When(func() bool { return v })
}

func (b *base[J]) Skip(pred func() bool) J {
	if pred == nil {
		b.record(argumentError("skip: nil predicate"))
		return b.self
	}
	b.rejects = append(b.rejects, pred)
	return b.self
}

func (b *base[J]) SkipBool(v bool) J {
	return b.Skip(func() bool { return v })
}

func (b *base[J]) Description(text string) J {
	b.description = strings.TrimSpace(text)
	return b.self
}

// OmitErrors merges stderr into the output target of shell jobs.
func (b *base[J]) OmitErrors(v bool) J {
	b.omitErrors = v
	return b.self
}

// Timezone evaluates the expression on the wall clock of loc.
func (b *base[J]) Timezone(loc *time.Location) J {
	if loc == nil {
		b.record(argumentError("timezone: nil location"))
		return b.self
	}
	b.loc = loc
	return b.self
}

// Before registers a hook that runs once the job is cleared to start.
func (b *base[J]) Before(h Hook) J {
	if h == nil {
		b.record(argumentError("before: nil hook"))
		return b.self
	}
	b.before = append(b.before, h)
	return b.self
}

// Then registers a hook that runs after the job completes. For detached
// shell jobs that is when Finish is called.
func (b *base[J]) Then(h Hook) J {
	if h == nil {
		b.record(argumentError("then: nil hook"))
		return b.self
	}
	b.after = append(b.after, h)
	return b.self
}

// PingBefore requests url through the schedule's pinger before the job starts.
func (b *base[J]) PingBefore(url string) J {
	url = strings.TrimSpace(url)
	if url == "" {
		b.record(argumentError("ping before: empty url"))
		return b.self
	}
	return b.Before(b.pingHook(url))
}

// ThenPing requests url after the job completes. Ping failures are logged only.
func (b *base[J]) ThenPing(url string) J {
	url = strings.TrimSpace(url)
	if url == "" {
		b.record(argumentError("then ping: empty url"))
		return b.self
	}
	return b.Then(b.pingHook(url))
}

func (b *base[J]) pingHook(url string) Hook {
	c := &b.jobCore
	return func(ctx context.Context) {
		if err := c.env.pinger.Ping(ctx, url); err != nil {
			c.env.log.Warn("ping failed", logx.String("url", url), logx.Err(err))
		}
	}
}
