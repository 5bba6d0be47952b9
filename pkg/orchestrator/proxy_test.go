package orchestrator

import (
	"context"
	"testing"

	"github.com/jmylchreest/crawlcore/pkg/browser"
)

func TestRoundRobinProxies_CyclesInOrder(t *testing.T) {
	r := NewRoundRobinProxies([]browser.ProxyConfig{
		{Server: "proxy1:8080"},
		{Server: "proxy2:8080"},
	})
	ctx := context.Background()

	first, _ := r.Next(ctx)
	second, _ := r.Next(ctx)
	third, _ := r.Next(ctx)

	if first.Server != "proxy1:8080" || second.Server != "proxy2:8080" || third.Server != "proxy1:8080" {
		t.Errorf("got %q, %q, %q", first.Server, second.Server, third.Server)
	}
}

func TestRoundRobinProxies_EmptyListReturnsNil(t *testing.T) {
	r := NewRoundRobinProxies(nil)
	p, err := r.Next(context.Background())
	if p != nil || err != nil {
		t.Errorf("got %v, %v", p, err)
	}
}
