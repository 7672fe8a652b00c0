package config

import (
	"reflect"
	"strings"

	logx "jobsched/pkg/logx"
)

// SummarizeChange lists the top-level sections that differ between two configs
// and returns log fields describing the new values. Secrets (tokens, DSNs,
// passwords) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	fields := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.journal", newCfg.Logging.Journal.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Mutex, newCfg.Mutex) {
		changed = append(changed, "mutex")
		fields = append(fields,
			logx.String("mutex.driver", strings.TrimSpace(newCfg.Mutex.Driver)),
			logx.String("mutex.expire_after", strings.TrimSpace(newCfg.Mutex.ExpireAfter)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if newCfg.Storage != nil {
			fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
		}
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		fields = append(fields, logx.Bool("notifier.telegram", newCfg.Notifier != nil && newCfg.Notifier.Telegram != nil))
	}
	if !reflect.DeepEqual(oldCfg.Runner, newCfg.Runner) {
		changed = append(changed, "runner")
		fields = append(fields, logx.String("runner.driver", newCfg.Runner.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		fields = append(fields,
			logx.Int("schedule.jobs", len(newCfg.Schedule.Jobs)),
			logx.String("schedule.timezone", newCfg.Schedule.Timezone),
		)
	}
	return changed, fields
}
