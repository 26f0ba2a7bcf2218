// Package registry dispatches targets to stream handlers.
package registry

import (
	"sync"

	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/types"
)

// StreamHandlerRegistry manages stream handlers. Handlers are tried in
// registration order; the fallback serves everything else.
type StreamHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []interfaces.StreamHandler
	fallback interfaces.StreamHandler
}

var _ interfaces.Registry[interfaces.StreamHandler] = (*StreamHandlerRegistry)(nil)

// NewStreamHandlerRegistry creates a new stream handler registry.
func NewStreamHandlerRegistry() *StreamHandlerRegistry {
	return &StreamHandlerRegistry{
		handlers: make([]interfaces.StreamHandler, 0),
	}
}

// Register adds a stream handler to the registry.
func (r *StreamHandlerRegistry) Register(handler interfaces.StreamHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handler)
}

// SetFallback sets the fallback handler used when no handler matches.
func (r *StreamHandlerRegistry) SetFallback(handler interfaces.StreamHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

// Get returns the appropriate handler for the given URL.
func (r *StreamHandlerRegistry) Get(url string) interfaces.StreamHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.CanHandle(url) {
			return h
		}
	}
	return r.fallback
}

// ForRequest picks the handler for req. A virtual media request always
// goes to the progressive handler that generated its link, even when the
// target's query happens to mention a playlist extension.
func (r *StreamHandlerRegistry) ForRequest(req *types.StreamRequest) interfaces.StreamHandler {
	if req.VirtualMedia {
		if h := r.GetByType(types.StreamTypeProgressive); h != nil {
			return h
		}
	}
	return r.Get(req.URL)
}

// GetByType returns the handler for a specific stream type.
func (r *StreamHandlerRegistry) GetByType(t types.StreamType) interfaces.StreamHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.Type() == t {
			return h
		}
	}
	if r.fallback != nil && r.fallback.Type() == t {
		return r.fallback
	}
	return nil
}

// All returns all registered handlers, fallback excluded.
func (r *StreamHandlerRegistry) All() []interfaces.StreamHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.StreamHandler, len(r.handlers))
	copy(result, r.handlers)
	return result
}
