package logx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
)

// journalWriter forwards zerolog JSON lines to journald, one entry per line,
// with every structured field promoted to a journal field.
type journalWriter struct {
	identifier string
}

func newJournalWriter(identifier string) (*journalWriter, bool) {
	if !journal.Enabled() {
		return nil, false
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = "jobsched"
	}
	return &journalWriter{identifier: identifier}, true
}

func (w *journalWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *journalWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	msg, vars := journalFields(p)
	vars["SYSLOG_IDENTIFIER"] = w.identifier
	// Never fail the log call because journald went away.
	_ = journal.Send(msg, journalPriority(level), vars)
	return len(p), nil
}

func journalFields(p []byte) (string, map[string]string) {
	vars := map[string]string{}
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return strings.TrimSpace(string(p)), vars
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	for k, v := range m {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		key := journalKey(k)
		if key == "" {
			continue
		}
		if s, ok := v.(string); ok {
			vars[key] = s
		} else {
			vars[key] = fmt.Sprint(v)
		}
	}
	return msg, vars
}

// journalKey maps a zerolog field name onto journald's [A-Z0-9_] alphabet.
func journalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(k) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}

func journalPriority(level zerolog.Level) journal.Priority {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return journal.PriDebug
	case zerolog.WarnLevel:
		return journal.PriWarning
	case zerolog.ErrorLevel:
		return journal.PriErr
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return journal.PriCrit
	default:
		return journal.PriInfo
	}
}
