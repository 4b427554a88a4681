package model

// HookFunc observes a model event. Hooks are fire-and-forget: they cannot
// veto or alter the operation.
type HookFunc func(event string, args ...any)

// Hooks is an ordered callback list per event name.
type Hooks struct {
	handlers map[string][]HookFunc
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{handlers: make(map[string][]HookFunc)}
}

// On registers fn for event. Handlers run in registration order.
func (h *Hooks) On(event string, fn HookFunc) {
	h.handlers[event] = append(h.handlers[event], fn)
}

// Notify invokes every handler registered for event.
func (h *Hooks) Notify(event string, args ...any) {
	if h == nil {
		return
	}
	for _, fn := range h.handlers[event] {
		fn(event, args...)
	}
}
