// Package interfaces defines the core abstractions for the relay.
// Stream handlers, the fetch layer and link builders implement these
// interfaces, which keeps handlers testable against fakes.
package interfaces

import (
	"context"
	"net/http"

	"hls-relay/pkg/types"
)

// StreamHandler serves one kind of upstream resource (HLS or progressive).
//
// To add a new stream type:
// 1. Create a new file in pkg/handlers/streams/
// 2. Implement this interface
// 3. Register it in the StreamHandlerRegistry
type StreamHandler interface {
	// Type returns the stream type this handler processes.
	Type() types.StreamType

	// CanHandle returns true if this handler can process the given URL.
	CanHandle(url string) bool

	// HandleManifest returns the playlist the player should load for req.
	// baseURL is the public address of this relay.
	HandleManifest(ctx context.Context, req *types.StreamRequest, baseURL string) (*types.StreamResponse, error)

	// HandleSegment relays a single binary resource.
	HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error)
}

// Fetcher is the upstream fetch primitive.
type Fetcher interface {
	// Fetch returns a streaming 2xx response. The caller closes the body.
	Fetch(ctx context.Context, req types.FetchRequest) (*http.Response, error)

	// FetchBytes reads a whole 2xx response body.
	FetchBytes(ctx context.Context, req types.FetchRequest) (*types.FetchedBody, error)
}

// LinkBuilder turns a resolved upstream URL into the URL a player should
// request instead.
type LinkBuilder interface {
	Link(target string, headers map[string]string) string
}

// Registry is a generic interface for component registries.
type Registry[T any] interface {
	// Register adds a component to the registry.
	Register(component T)

	// Get returns the appropriate component for the given URL.
	Get(url string) T

	// All returns all registered components.
	All() []T
}
