package registry

import "context"

// ActionHandler is an application-registered business function invoked by
// action steps. It receives the run's variables and returns key/values to
// merge back into them.
type ActionHandler func(ctx context.Context, variables map[string]any) (map[string]any, error)

// ActionRegistry maps handler names to application business functions.
// Like the step type registry it is write-once at startup.
type ActionRegistry struct {
	handlers map[string]ActionHandler
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{handlers: make(map[string]ActionHandler)}
}

func (r *ActionRegistry) Register(name string, handler ActionHandler) {
	r.handlers[name] = handler
}

// Handler looks up a handler by name. An unknown name is a configuration
// error, never retried.
func (r *ActionRegistry) Handler(name string) (ActionHandler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, &UnknownActionHandlerError{Handler: name}
	}

	return handler, nil
}

// Handlers returns the registered handler names, for diagnostics.
func (r *ActionRegistry) Handlers() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}

	return names
}
