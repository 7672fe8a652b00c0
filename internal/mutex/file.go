package mutex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// File keeps one marker file per held key under a directory.
//
// The marker has to outlive the acquiring process (a background job is
// released by a later invocation), so an flock alone is not enough. The flock
// on the directory's guard file only serializes the check-and-create step.
type File struct {
	dir         string
	holder      string
	expireAfter time.Duration
	guard       *flock.Flock
}

const guardRetry = 25 * time.Millisecond

func NewFile(dir, holder string, expireAfter time.Duration) (*File, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("mutex: file driver needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mutex: %w", err)
	}
	return &File{
		dir:         dir,
		holder:      holder,
		expireAfter: expireAfter,
		guard:       flock.New(filepath.Join(dir, ".guard.lock")),
	}, nil
}

func (f *File) Distributed() bool { return false }

func (f *File) markerPath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return filepath.Join(f.dir, b.String()+".lock")
}

func (f *File) withGuard(ctx context.Context, fn func() error) error {
	ok, err := f.guard.TryLockContext(ctx, guardRetry)
	if err != nil {
		return fmt.Errorf("mutex: guard lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("mutex: guard lock not obtained")
	}
	defer f.guard.Unlock()
	return fn()
}

func (f *File) Acquire(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	path := f.markerPath(key)
	acquired := false
	err := f.withGuard(ctx, func() error {
		if st, err := os.Stat(path); err == nil {
			if f.expireAfter <= 0 || time.Since(st.ModTime()) < f.expireAfter {
				return nil
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				return nil
			}
			return err
		}
		_, werr := fmt.Fprintf(fh, "%s\n%s\n", f.holder, time.Now().UTC().Format(time.RFC3339))
		cerr := fh.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mutex: acquire %s: %w", key, err)
	}
	return acquired, nil
}

func (f *File) Release(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	path := f.markerPath(key)
	return f.withGuard(ctx, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("mutex: release %s: %w", key, err)
		}
		return nil
	})
}
