// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about serialization sessions, document store operations,
// and HTTP requests served by the API.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the engine itself never
// imports a metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetSerialHooks(&mySerialHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Serial().OnLoadStart(ctx, "json", true)
//	// ... decode ...
//	observability.Serial().OnLoadComplete(ctx, "json", objects, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Serial Hooks
// =============================================================================

// SerialHooks receives events from serialization sessions.
type SerialHooks interface {
	// Dump events
	OnDumpStart(ctx context.Context, format string)
	OnDumpComplete(ctx context.Context, format string, size int, duration time.Duration, err error)

	// Load events
	OnLoadStart(ctx context.Context, format string, safe bool)
	OnLoadComplete(ctx context.Context, format string, objects int, duration time.Duration, err error)

	// OnDisallowed records a type tag refused by the safe-mode gate.
	OnDisallowed(ctx context.Context, format, tag string)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from document store operations.
type StoreHooks interface {
	// OnStoreHit records a successful document read.
	OnStoreHit(ctx context.Context, backend string)

	// OnStoreMiss records a read of a missing document.
	OnStoreMiss(ctx context.Context, backend string)

	// OnStorePut records a document write.
	OnStorePut(ctx context.Context, backend string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP service.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSerialHooks is a no-op implementation of SerialHooks.
type NoopSerialHooks struct{}

func (NoopSerialHooks) OnDumpStart(context.Context, string)                                 {}
func (NoopSerialHooks) OnDumpComplete(context.Context, string, int, time.Duration, error) {}
func (NoopSerialHooks) OnLoadStart(context.Context, string, bool)                           {}
func (NoopSerialHooks) OnLoadComplete(context.Context, string, int, time.Duration, error) {}
func (NoopSerialHooks) OnDisallowed(context.Context, string, string)                        {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnStoreHit(context.Context, string)      {}
func (NoopStoreHooks) OnStoreMiss(context.Context, string)     {}
func (NoopStoreHooks) OnStorePut(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                          {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	serialHooks SerialHooks = NoopSerialHooks{}
	storeHooks  StoreHooks  = NoopStoreHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetSerialHooks registers custom serialization hooks.
// This should be called once at application startup before any session runs.
func SetSerialHooks(h SerialHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		serialHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Serial returns the registered serialization hooks.
func Serial() SerialHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return serialHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	serialHooks = NoopSerialHooks{}
	storeHooks = NoopStoreHooks{}
	httpHooks = NoopHTTPHooks{}
}
