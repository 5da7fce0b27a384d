// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about codec operations and async stream sessions.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetCodecHooks(&myCodecHooks{})
//	    observability.SetStreamHooks(&myStreamHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Codec().OnFlattenStart(ctx)
//	// ... flatten ...
//	observability.Codec().OnFlattenComplete(ctx, partCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Codec Hooks
// =============================================================================

// CodecHooks receives events from flatten and unflatten operations.
type CodecHooks interface {
	// Flatten events
	OnFlattenStart(ctx context.Context)
	OnFlattenComplete(ctx context.Context, partCount int, duration time.Duration, err error)

	// Unflatten events
	OnUnflattenStart(ctx context.Context, partCount int)
	OnUnflattenComplete(ctx context.Context, duration time.Duration, err error)
}

// =============================================================================
// Stream Hooks
// =============================================================================

// StreamHooks receives events from async multiplex/demultiplex sessions.
type StreamHooks interface {
	// OnChannelOpen records a new channel joining a session.
	// Kind is "single" or "sequence".
	OnChannelOpen(ctx context.Context, session string, channel int64, kind string)

	// OnChunk records one out-of-band chunk being produced or consumed.
	OnChunk(ctx context.Context, session string, channel int64, status int, size int)

	// OnChannelClose records a channel reaching its terminal status.
	OnChannelClose(ctx context.Context, session string, channel int64)

	// OnSessionEnd records the end of a whole multiplex/demultiplex session.
	OnSessionEnd(ctx context.Context, session string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCodecHooks is a no-op implementation of CodecHooks.
type NoopCodecHooks struct{}

func (NoopCodecHooks) OnFlattenStart(context.Context)                                  {}
func (NoopCodecHooks) OnFlattenComplete(context.Context, int, time.Duration, error)    {}
func (NoopCodecHooks) OnUnflattenStart(context.Context, int)                           {}
func (NoopCodecHooks) OnUnflattenComplete(context.Context, time.Duration, error)       {}

// NoopStreamHooks is a no-op implementation of StreamHooks.
type NoopStreamHooks struct{}

func (NoopStreamHooks) OnChannelOpen(context.Context, string, int64, string)       {}
func (NoopStreamHooks) OnChunk(context.Context, string, int64, int, int)           {}
func (NoopStreamHooks) OnChannelClose(context.Context, string, int64)              {}
func (NoopStreamHooks) OnSessionEnd(context.Context, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	codecHooks  CodecHooks  = NoopCodecHooks{}
	streamHooks StreamHooks = NoopStreamHooks{}
	hooksMu     sync.RWMutex
)

// SetCodecHooks registers custom codec hooks.
// This should be called once at application startup before any codec operations.
func SetCodecHooks(h CodecHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		codecHooks = h
	}
}

// SetStreamHooks registers custom stream hooks.
// This should be called once at application startup before any stream sessions.
func SetStreamHooks(h StreamHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		streamHooks = h
	}
}

// Codec returns the registered codec hooks.
func Codec() CodecHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return codecHooks
}

// Stream returns the registered stream hooks.
func Stream() StreamHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return streamHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	codecHooks = NoopCodecHooks{}
	streamHooks = NoopStreamHooks{}
}
