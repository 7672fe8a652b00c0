package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	logx "jobsched/pkg/logx"
)

// Callback is the in-process work of a CallbackJob. It receives the
// parameters the job was built with.
type Callback func(ctx context.Context, args ...any) (any, error)

// CallbackJob runs a Go function. The key names the function: it feeds the
// job id and is the display fallback, so it must be stable across builds of
// the schedule.
type CallbackJob struct {
	base[*CallbackJob]

	key    string
	fn     Callback
	params []any

	result  any
	lastErr error
}

func NewCallbackJob(key string, fn Callback, params ...any) (*CallbackJob, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, argumentError("callback job: empty key")
	}
	if fn == nil {
		return nil, argumentError("callback job %q: nil callback", key)
	}
	j := &CallbackJob{key: key, fn: fn, params: params}
	j.jobCore = newJobCore()
	j.self = j
	return j, nil
}

func (j *CallbackJob) Key() string { return j.key }

// ID hashes the expression, the key and the JSON form of the parameters.
func (j *CallbackJob) ID() string {
	params, err := json.Marshal(j.params)
	if err != nil {
		params = []byte(fmt.Sprintf("%#v", j.params))
	}
	return j.deriveID(j.key, string(params))
}

func (j *CallbackJob) SummaryForDisplay() string {
	if j.description != "" {
		return j.description
	}
	return j.key
}

// Result is the value returned by the last successful run, or nil.
func (j *CallbackJob) Result() any { return j.result }

// LastError is the error (or recovered panic) of the last run, or nil.
func (j *CallbackJob) LastError() error { return j.lastErr }

// Run calls the function. An error or panic leaves Result nil and is
// reported in RunResult.Err; after-complete fires either way.
func (j *CallbackJob) Run(ctx context.Context) RunResult {
	if d := j.beforeRun(ctx); !d.Proceed {
		return RunResult{Outcome: Skipped, Reason: d.Reason}
	}
	defer j.afterComplete(ctx)

	j.result, j.lastErr = j.call(ctx)
	if j.lastErr != nil {
		j.result = nil
		j.env.log.Warn("callback failed", logx.Job(j.ID(), j.SummaryForDisplay()), logx.Err(j.lastErr))
	}
	return RunResult{Outcome: Completed, Err: j.lastErr}
}

func (j *CallbackJob) call(ctx context.Context) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback %q panicked: %v", j.key, r)
		}
	}()
	return j.fn(ctx, j.params...)
}
