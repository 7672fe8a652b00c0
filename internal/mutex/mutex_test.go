package mutex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	logx "jobsched/pkg/logx"
)

// fakeRedis implements redisClient over a map.
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]any
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]any{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value
	f.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

// Eval runs the release script: delete keys[0] when it starts with args[0].
func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.keys[keys[0]].(string)
	if !ok || !strings.HasPrefix(v, args[0].(string)) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.keys, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func backends(t *testing.T) map[string]Mutex {
	t.Helper()
	dir := t.TempDir()

	fm, err := NewFile(filepath.Join(dir, "locks"), "test-holder", 0)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	sm, err := OpenSQLite(context.Background(), filepath.Join(dir, "locks.db"), "test-holder", 0, 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sm.Close() })

	return map[string]Mutex{
		"memory": NewMemory(0),
		"file":   fm,
		"sqlite": sm,
		"redis":  NewRedis(newFakeRedis(), "test-holder", 0),
	}
}

func TestAcquireReleaseContract(t *testing.T) {
	ctx := context.Background()
	const key = "jobsched/schedule-0123456789abcdef"

	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := m.Acquire(ctx, key)
			if err != nil || !ok {
				t.Fatalf("first Acquire = %v, %v; want true", ok, err)
			}
			ok, err = m.Acquire(ctx, key)
			if err != nil || ok {
				t.Fatalf("second Acquire = %v, %v; want false", ok, err)
			}
			ok, err = m.Acquire(ctx, key+"-other")
			if err != nil || !ok {
				t.Fatalf("Acquire of unrelated key = %v, %v; want true", ok, err)
			}

			if err := m.Release(ctx, key); err != nil {
				t.Fatalf("Release: %v", err)
			}
			if err := m.Release(ctx, key); err != nil {
				t.Fatalf("second Release should be a no-op, got %v", err)
			}
			ok, err = m.Acquire(ctx, key)
			if err != nil || !ok {
				t.Fatalf("Acquire after Release = %v, %v; want true", ok, err)
			}
			if _, err := m.Acquire(ctx, " "); !errors.Is(err, ErrEmptyKey) {
				t.Fatalf("Acquire(empty) err = %v, want ErrEmptyKey", err)
			}
		})
	}
}

func TestDistributedFlag(t *testing.T) {
	want := map[string]bool{"memory": false, "file": false, "sqlite": false, "redis": true}
	for name, m := range backends(t) {
		if m.Distributed() != want[name] {
			t.Fatalf("%s.Distributed() = %v, want %v", name, m.Distributed(), want[name])
		}
	}
}

func TestMemoryExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 2, 4, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := m.Acquire(ctx, "k"); !ok {
		t.Fatalf("first Acquire should succeed")
	}
	now = now.Add(59 * time.Minute)
	if ok, _ := m.Acquire(ctx, "k"); ok {
		t.Fatalf("Acquire before expiry should fail")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := m.Acquire(ctx, "k"); !ok {
		t.Fatalf("Acquire after expiry should succeed")
	}
	if !m.Held("k") {
		t.Fatalf("Held(k) = false after Acquire")
	}
}

func TestFileMarkerSurvivesNewInstance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	first, _ := NewFile(dir, "run-1", 0)
	second, _ := NewFile(dir, "run-2", 0)

	if ok, err := first.Acquire(ctx, "jobsched/schedule-x"); err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	if ok, _ := second.Acquire(ctx, "jobsched/schedule-x"); ok {
		t.Fatalf("another process must not acquire a held key")
	}
	b, err := os.ReadFile(first.markerPath("jobsched/schedule-x"))
	if err != nil {
		t.Fatalf("marker missing: %v", err)
	}
	if string(b[:len("run-1")]) != "run-1" {
		t.Fatalf("marker should record the holder, got %q", b)
	}
	// The finish callback runs in a different process and must be able to release.
	if err := second.Release(ctx, "jobsched/schedule-x"); err != nil {
		t.Fatalf("Release from another instance: %v", err)
	}
	if ok, _ := first.Acquire(ctx, "jobsched/schedule-x"); !ok {
		t.Fatalf("Acquire after foreign Release should succeed")
	}
}

func TestFileExpiry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	m, _ := NewFile(dir, "h", time.Minute)
	if ok, _ := m.Acquire(ctx, "k"); !ok {
		t.Fatalf("Acquire should succeed")
	}
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(m.markerPath("k"), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if ok, _ := m.Acquire(ctx, "k"); !ok {
		t.Fatalf("stale marker should be taken over")
	}
}

func TestSQLiteRecordsHolder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "l.db"), "host/1/abc", 0, 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer m.Close()

	if ok, _ := m.Acquire(ctx, "k"); !ok {
		t.Fatalf("Acquire should succeed")
	}
	h, err := m.Holder(ctx, "k")
	if err != nil || h != "host/1/abc" {
		t.Fatalf("Holder = %q, %v", h, err)
	}
	_ = m.Release(ctx, "k")
	if h, _ := m.Holder(ctx, "k"); h != "" {
		t.Fatalf("Holder after Release = %q, want empty", h)
	}
}

func TestOpenSQLiteReportsUnusableFile(t *testing.T) {
	// A directory cannot be opened as a database; the first pragma fails.
	dir := t.TempDir()
	_, err := OpenSQLite(context.Background(), dir, "h", 0, 0)
	if err == nil || !strings.Contains(err.Error(), "PRAGMA busy_timeout") {
		t.Fatalf("err = %v, want the busy_timeout pragma error", err)
	}
}

func TestRedisPassesExpiry(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	m := NewRedis(fake, "h", 90*time.Second)
	if ok, _ := m.Acquire(context.Background(), "k"); !ok {
		t.Fatalf("Acquire should succeed")
	}
	if fake.ttl["k"] != 90*time.Second {
		t.Fatalf("SetNX expiration = %s, want 90s", fake.ttl["k"])
	}
	if fake.keys["k"] != "h" {
		t.Fatalf("SetNX value = %v, want holder", fake.keys["k"])
	}
}

func TestRedisReleaseKeepsOtherHostsLocks(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	web1 := NewRedis(fake, "web-1/100/a", 0)
	web2 := NewRedis(fake, "web-2/200/b", 0)
	callback := NewRedis(fake, "web-1/101/c", 0)

	if ok, err := web1.Acquire(ctx, "k"); err != nil || !ok {
		t.Fatalf("Acquire = %v, %v; want true", ok, err)
	}
	if err := web2.Release(ctx, "k"); err != nil {
		t.Fatalf("Release from web-2: %v", err)
	}
	if fake.keys["k"] != "web-1/100/a" {
		t.Fatalf("key after foreign release = %v, want still held by web-1", fake.keys["k"])
	}
	if ok, _ := web2.Acquire(ctx, "k"); ok {
		t.Fatalf("web-2 acquired a lock web-1 holds")
	}

	if err := callback.Release(ctx, "k"); err != nil {
		t.Fatalf("Release from web-1 callback: %v", err)
	}
	if _, held := fake.keys["k"]; held {
		t.Fatalf("same-host release left the key in place")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, closeFn, err := Open(ctx, Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(default): %v", err)
	}
	defer closeFn()
	if _, ok := m.(*Memory); !ok {
		t.Fatalf("default driver = %T, want *Memory", m)
	}

	m, closeFn, err = Open(ctx, Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(file): %v", err)
	}
	defer closeFn()
	if _, ok := m.(*File); !ok {
		t.Fatalf("file driver = %T", m)
	}

	if _, _, err := Open(ctx, Config{Driver: "zookeeper"}, logx.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, _, err := Open(ctx, Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected missing path error")
	}
}
