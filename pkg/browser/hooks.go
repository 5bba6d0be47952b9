package browser

import "context"

// HookPhase names one of the Engine Adapter's declared extension points
// (spec.md §4.2). Hooks registered under a phase run only when that phase
// is reached during fetch.
type HookPhase string

const (
	HookBrowserCreated     HookPhase = "on_browser_created"
	HookPageContextCreated HookPhase = "on_page_context_created"
	HookUserAgentUpdated   HookPhase = "on_user_agent_updated"
	HookExecutionStarted   HookPhase = "on_execution_started"
	HookBeforeGoto         HookPhase = "before_goto"
	HookAfterGoto          HookPhase = "after_goto"
	HookBeforeRetrieveHTML HookPhase = "before_retrieve_html"
	HookBeforeReturnHTML   HookPhase = "before_return_html"
)

// Hook is a user-registered extension point. It receives the adapter's
// chromedp context plus phase-specific key/value pairs (e.g. "url", the
// target URL; "html", the retrieved HTML at before_return_html). Hooks may
// block on I/O; they must not assume any phase but the one they registered
// under.
type Hook func(ctx context.Context, kv map[string]any) error

// hookSet holds the hooks registered per phase, invoked in registration
// order. Not safe for concurrent Register calls; registration is expected
// to happen once at adapter construction.
type hookSet struct {
	hooks map[HookPhase][]Hook
}

func newHookSet() *hookSet {
	return &hookSet{hooks: make(map[HookPhase][]Hook)}
}

// Register adds fn to run whenever phase is reached.
func (h *hookSet) Register(phase HookPhase, fn Hook) {
	h.hooks[phase] = append(h.hooks[phase], fn)
}

// run invokes every hook registered for phase, in order, stopping at the
// first error.
func (h *hookSet) run(ctx context.Context, phase HookPhase, kv map[string]any) error {
	for _, fn := range h.hooks[phase] {
		if err := fn(ctx, kv); err != nil {
			return err
		}
	}
	return nil
}
