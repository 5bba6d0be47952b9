// Package memstat reports the current memory-pressure percentage the
// browser pool's adaptive janitor and the dispatcher's memory-adaptive
// variant gate on. It prefers the container's own cgroup limit over host
// memory, so the janitor does not under-react inside a memory-limited
// container (spec.md §4.1).
package memstat

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jmylchreest/crawlcore/internal/logger"
)

// Reader reports the current memory-pressure percentage, 0-100.
type Reader interface {
	MemoryPercent(ctx context.Context) (float64, error)
}

const (
	cgroupV2Current = "/sys/fs/cgroup/memory.current"
	cgroupV2Max      = "/sys/fs/cgroup/memory.max"
	cgroupV1Usage    = "/sys/fs/cgroup/memory/memory.usage_in_bytes"
	cgroupV1Limit    = "/sys/fs/cgroup/memory/memory.limit_in_bytes"
)

// cgroupReader reads memory.current/memory.max (v2) or
// memory.usage_in_bytes/memory.limit_in_bytes (v1).
type cgroupReader struct {
	usagePath string
	limitPath string
}

func (r cgroupReader) MemoryPercent(_ context.Context) (float64, error) {
	usage, err := readUintFile(r.usagePath)
	if err != nil {
		return 0, err
	}
	limit, err := readUintFile(r.limitPath)
	if err != nil {
		return 0, err
	}
	// An unset cgroup v2 limit reads back as the literal string "max"; a v1
	// limit with no ceiling reads back as a sentinel near math.MaxInt64.
	if limit == 0 || limit > uint64(1)<<62 {
		return 0, errNoLimit
	}
	return float64(usage) / float64(limit) * 100, nil
}

var errNoLimit = &noLimitError{}

type noLimitError struct{}

func (*noLimitError) Error() string { return "memstat: no cgroup memory limit configured" }

func readUintFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "max" {
		return 0, errNoLimit
	}
	return strconv.ParseUint(s, 10, 64)
}

// hostReader falls back to total/available system memory via gopsutil,
// grounded on RecoveryAshes-JsFIndcrack's ResourceMonitor.GetMemoryStatus
// (mem.VirtualMemory() with a hardcoded-default fallback on error).
type hostReader struct{}

func (hostReader) MemoryPercent(_ context.Context) (float64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		// 4GB assumed total, fully available, matching the conservative
		// default the gopsutil-based example falls back to.
		logger.Warn("memstat: host memory read failed, assuming no pressure", "error", err)
		return 0, nil
	}
	return v.UsedPercent, nil
}

// cachedReader wraps another Reader with a short TTL cache so hot paths
// (Pool.Acquire, Dispatcher admission loop) don't repeatedly hit /proc or
// shell out to gopsutil on every call.
type cachedReader struct {
	inner Reader
	ttl   time.Duration

	mu        sync.Mutex
	value     float64
	err       error
	fetchedAt time.Time
}

func (c *cachedReader) MemoryPercent(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if time.Since(c.fetchedAt) < c.ttl {
		v, e := c.value, c.err
		c.mu.Unlock()
		return v, e
	}
	c.mu.Unlock()

	v, err := c.inner.MemoryPercent(ctx)

	c.mu.Lock()
	c.value, c.err, c.fetchedAt = v, err, time.Now()
	c.mu.Unlock()

	return v, err
}

// chainReader tries each Reader in order, returning the first successful
// result (cgroup v2 → cgroup v1 → host).
type chainReader struct {
	readers []Reader
}

func (c chainReader) MemoryPercent(ctx context.Context) (float64, error) {
	var lastErr error
	for _, r := range c.readers {
		pct, err := r.MemoryPercent(ctx)
		if err == nil {
			return pct, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// DefaultReader builds the cgroup-v2 → cgroup-v1 → host-memory chain
// described in spec.md §4.1, cached for one second so repeated callers in
// the same admission tick don't re-read /sys/fs/cgroup on every check.
func DefaultReader() Reader {
	chain := chainReader{readers: []Reader{
		cgroupReader{usagePath: cgroupV2Current, limitPath: cgroupV2Max},
		cgroupReader{usagePath: cgroupV1Usage, limitPath: cgroupV1Limit},
		hostReader{},
	}}
	return &cachedReader{inner: chain, ttl: time.Second}
}
