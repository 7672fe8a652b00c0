//go:build linux

package process

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

// Systemd launches background commands as transient service units, so a
// detached job is tracked by systemd and survives the scheduler's own unit
// being stopped. Foreground commands are delegated to Fallback.
type Systemd struct {
	conn       *dbus.Conn
	unitPrefix string
	Fallback   Runner
	now        func() time.Time
}

// NewSystemd connects to the system bus.
func NewSystemd(ctx context.Context, unitPrefix string) (*Systemd, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	if strings.TrimSpace(unitPrefix) == "" {
		unitPrefix = "jobsched"
	}
	return &Systemd{conn: conn, unitPrefix: unitPrefix, Fallback: NewExec(), now: time.Now}, nil
}

func (s *Systemd) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *Systemd) Run(ctx context.Context, command string) (int, error) {
	return s.Fallback.Run(ctx, command)
}

func (s *Systemd) DetachesOnStart() bool { return true }

// Start runs command in its own unit. The unit is the detachment, so command
// should run in the foreground; a trailing shell "&" is dropped.
func (s *Systemd) Start(ctx context.Context, command string) error {
	name := s.unitName(command)
	props := []dbus.Property{
		dbus.PropDescription("jobsched: " + truncate(command, 200)),
		dbus.PropExecStart(unitExecStart(command), false),
		dbus.PropType("exec"),
		{Name: "CollectMode", Value: godbus.MakeVariant("inactive-or-failed")},
	}

	done := make(chan string, 1)
	if _, err := s.conn.StartTransientUnitContext(ctx, name, "fail", props, done); err != nil {
		return fmt.Errorf("process: start transient unit %s: %w", name, err)
	}
	select {
	case res := <-done:
		if res != "done" {
			return fmt.Errorf("process: transient unit %s: job %s", name, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Systemd) unitName(command string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d", command, s.now().UnixNano())))
	return s.unitPrefix + "-" + hex.EncodeToString(sum[:6]) + ".service"
}
