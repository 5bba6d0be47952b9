package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/jmylchreest/crawlcore/pkg/browser"
)

// ProxyRotator supplies the next proxy to inject into the Browser Config
// for a run, per spec.md §3's "proxy-rotation strategy" run-config knob
// (modeled here as an Orchestrator-level collaborator rather than a
// RunConfig field, since RunConfig is a JSON-serializable value and a
// rotation strategy is behavior, not data — see DESIGN.md).
type ProxyRotator interface {
	Next(ctx context.Context) (*browser.ProxyConfig, error)
}

// RoundRobinProxies cycles through a fixed list of proxies.
type RoundRobinProxies struct {
	proxies []browser.ProxyConfig
	next    atomic.Uint64
}

// NewRoundRobinProxies builds a ProxyRotator over a fixed proxy list.
func NewRoundRobinProxies(proxies []browser.ProxyConfig) *RoundRobinProxies {
	return &RoundRobinProxies{proxies: proxies}
}

func (r *RoundRobinProxies) Next(ctx context.Context) (*browser.ProxyConfig, error) {
	if len(r.proxies) == 0 {
		return nil, nil
	}
	i := r.next.Add(1) - 1
	p := r.proxies[i%uint64(len(r.proxies))]
	return &p, nil
}
