package memstat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCgroupReader_MemoryPercent(t *testing.T) {
	dir := t.TempDir()
	usage := filepath.Join(dir, "usage")
	limit := filepath.Join(dir, "limit")

	if err := os.WriteFile(usage, []byte("500000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(limit, []byte("1000000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := cgroupReader{usagePath: usage, limitPath: limit}
	pct, err := r.MemoryPercent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct != 50 {
		t.Fatalf("expected 50%%, got %v", pct)
	}
}

func TestCgroupReader_UnlimitedMax(t *testing.T) {
	dir := t.TempDir()
	usage := filepath.Join(dir, "usage")
	limit := filepath.Join(dir, "max")

	os.WriteFile(usage, []byte("123"), 0o644)
	os.WriteFile(limit, []byte("max"), 0o644)

	r := cgroupReader{usagePath: usage, limitPath: limit}
	if _, err := r.MemoryPercent(context.Background()); err == nil {
		t.Fatal("expected an error when the cgroup has no configured limit")
	}
}

func TestCgroupReader_MissingFile(t *testing.T) {
	r := cgroupReader{usagePath: "/nonexistent/usage", limitPath: "/nonexistent/limit"}
	if _, err := r.MemoryPercent(context.Background()); err == nil {
		t.Fatal("expected an error for a missing cgroup file")
	}
}

func TestChainReader_FallsThroughToHost(t *testing.T) {
	chain := chainReader{readers: []Reader{
		cgroupReader{usagePath: "/nonexistent/usage", limitPath: "/nonexistent/limit"},
		hostReader{},
	}}

	pct, err := chain.MemoryPercent(context.Background())
	if err != nil {
		t.Fatalf("expected host fallback to succeed, got error: %v", err)
	}
	if pct < 0 || pct > 100 {
		t.Fatalf("expected a percentage in [0,100], got %v", pct)
	}
}

func TestCachedReader_ServesStaleValueWithinTTL(t *testing.T) {
	calls := 0
	fake := readerFunc(func(ctx context.Context) (float64, error) {
		calls++
		return float64(calls), nil
	})

	c := &cachedReader{inner: fake, ttl: time.Hour}
	first, _ := c.MemoryPercent(context.Background())
	second, _ := c.MemoryPercent(context.Background())

	if first != second {
		t.Fatalf("expected cached value to be reused, got %v then %v", first, second)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one underlying read, got %d", calls)
	}
}

type readerFunc func(ctx context.Context) (float64, error)

func (f readerFunc) MemoryPercent(ctx context.Context) (float64, error) { return f(ctx) }
