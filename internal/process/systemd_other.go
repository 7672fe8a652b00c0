//go:build !linux

package process

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("process: systemd runner is linux only")

type Systemd struct {
	Fallback Runner
}

func NewSystemd(context.Context, string) (*Systemd, error) { return nil, ErrUnsupported }

func (s *Systemd) Close() error { return nil }

func (s *Systemd) DetachesOnStart() bool { return true }

func (s *Systemd) Run(ctx context.Context, command string) (int, error) {
	return s.Fallback.Run(ctx, command)
}

func (s *Systemd) Start(context.Context, string) error { return ErrUnsupported }
