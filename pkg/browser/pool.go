package browser

import (
	"context"
	"sync"
	"time"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

// Pool implements the Browser Pool of spec.md §4.1: a Permanent slot plus
// Hot/Cold maps keyed by config signature, with an adaptive janitor that
// evicts idle adapters under memory pressure.
type Pool struct {
	permanentSignature string
	permanent          *Adapter

	mu  sync.Mutex
	hot map[string]*Adapter
	cld map[string]*Adapter

	creationLocks sync.Map // signature -> *sync.Mutex

	reader memstat.Reader

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// NewPool creates the Permanent adapter from defaultConfig and starts the
// adaptive janitor. Callers must call Shutdown to release resources.
func NewPool(defaultConfig Config, reader memstat.Reader) (*Pool, error) {
	if reader == nil {
		reader = memstat.DefaultReader()
	}

	permanent, err := NewAdapter(defaultConfig)
	if err != nil {
		return nil, err
	}
	permanent.SetTier(TierPermanent)

	p := &Pool{
		permanentSignature: Signature(defaultConfig),
		permanent:           permanent,
		hot:                 make(map[string]*Adapter),
		cld:                 make(map[string]*Adapter),
		reader:              reader,
		janitorStop:         make(chan struct{}),
		janitorDone:         make(chan struct{}),
	}

	go p.janitorLoop()
	return p, nil
}

// creationLock returns the per-signature mutex guarding adapter creation,
// creating it on first use (spec.md §4.1: "Use a per-signature creation
// lock").
func (p *Pool) creationLock(sig string) *sync.Mutex {
	v, _ := p.creationLocks.LoadOrStore(sig, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Acquire implements the Browser Pool's acquire contract.
func (p *Pool) Acquire(ctx context.Context, cfg Config) (*Adapter, error) {
	sig := Signature(cfg)

	if sig == p.permanentSignature {
		p.permanent.touch()
		return p.permanent, nil
	}

	p.mu.Lock()
	if a, ok := p.hot[sig]; ok {
		p.mu.Unlock()
		a.touch()
		return a, nil
	}
	if a, ok := p.cld[sig]; ok {
		p.mu.Unlock()
		a.touch()
		if a.UseCount() >= PromotionThreshold {
			p.promote(sig, a)
		}
		return a, nil
	}
	p.mu.Unlock()

	lock := p.creationLock(sig)
	lock.Lock()
	defer lock.Unlock()

	// Re-check: another goroutine may have created it while we waited.
	p.mu.Lock()
	if a, ok := p.cld[sig]; ok {
		p.mu.Unlock()
		a.touch()
		return a, nil
	}
	if a, ok := p.hot[sig]; ok {
		p.mu.Unlock()
		a.touch()
		return a, nil
	}
	p.mu.Unlock()

	if pct, err := p.reader.MemoryPercent(ctx); err == nil && pct > 95 {
		p.evictSweep(time.Now(), true)
		if pct2, err2 := p.reader.MemoryPercent(ctx); err2 == nil && pct2 > 95 {
			return nil, crawlresult.NewError(crawlresult.ErrorKindPoolExhaust, "memory pressure exceeds 95% after eviction sweep", nil)
		}
	}

	a, err := NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	a.SetTier(TierCold)
	a.touch()

	p.mu.Lock()
	p.cld[sig] = a
	p.mu.Unlock()

	return a, nil
}

// promote moves an adapter from Cold to Hot.
func (p *Pool) promote(sig string, a *Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, stillCold := p.cld[sig]; !stillCold {
		return
	}
	delete(p.cld, sig)
	a.SetTier(TierHot)
	p.hot[sig] = a
	logger.Debug("browser pool: promoted adapter to hot tier", "signature", sig, "use_count", a.UseCount())
}

// janitorLoop wakes on an interval dictated by recent memory pressure and
// evicts idle Cold/Hot adapters past their tier TTL (spec.md §4.1).
func (p *Pool) janitorLoop() {
	defer close(p.janitorDone)

	interval := pressureLow.WakeInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-p.janitorStop:
			return
		case <-timer.C:
			pct, err := p.reader.MemoryPercent(context.Background())
			if err != nil {
				logger.Warn("browser pool janitor: memory read failed", "error", err)
				pct = 0
			}
			band := ttlForMemoryPercent(pct)
			p.evictSweep(time.Now(), false)
			interval = band.WakeInterval
			timer.Reset(interval)
		}
	}
}

// evictSweep scans Cold first, then Hot, closing adapters whose idle time
// exceeds their tier's TTL. When force is true (memory-exhaustion fallback
// during Acquire) it evicts every Cold adapter regardless of TTL.
func (p *Pool) evictSweep(now time.Time, force bool) {
	pct, _ := p.reader.MemoryPercent(context.Background())
	band := ttlForMemoryPercent(pct)

	p.mu.Lock()
	var toClose []*Adapter

	for sig, a := range p.cld {
		if force || now.Sub(a.LastUsed()) > band.ColdTTL {
			toClose = append(toClose, a)
			delete(p.cld, sig)
		}
	}
	for sig, a := range p.hot {
		if now.Sub(a.LastUsed()) > band.HotTTL {
			toClose = append(toClose, a)
			delete(p.hot, sig)
		}
	}
	p.mu.Unlock()

	for _, a := range toClose {
		a.EvictIdleSessions(now)
		if err := a.Close(); err != nil {
			logger.Warn("browser pool janitor: adapter close failed", "signature", a.Signature(), "error", err)
		}
	}
	if len(toClose) > 0 {
		logger.Debug("browser pool janitor: evicted adapters", "count", len(toClose), "memory_percent", pct)
	}
}

// Shutdown closes all adapters in the order spec.md §4.1 requires: Cold,
// then Hot, then Permanent.
func (p *Pool) Shutdown() error {
	close(p.janitorStop)
	<-p.janitorDone

	p.mu.Lock()
	cold := make([]*Adapter, 0, len(p.cld))
	for _, a := range p.cld {
		cold = append(cold, a)
	}
	hot := make([]*Adapter, 0, len(p.hot))
	for _, a := range p.hot {
		hot = append(hot, a)
	}
	p.cld = make(map[string]*Adapter)
	p.hot = make(map[string]*Adapter)
	p.mu.Unlock()

	var firstErr error
	closeAll := func(adapters []*Adapter) {
		for _, a := range adapters {
			if err := a.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	closeAll(cold)
	closeAll(hot)
	if p.permanent != nil {
		if err := p.permanent.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats reports the current tier occupancy, useful for tests and metrics.
func (p *Pool) Stats() (hot, cold int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hot), len(p.cld)
}
