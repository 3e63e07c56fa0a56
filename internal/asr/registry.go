package asr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNoBackend is returned when transcription is requested from an empty
// registry.
var ErrNoBackend = errors.New("asr: no primary backend configured")

// Registry holds the configured backends and the order they are tried in:
// the primary, then the optional fallback.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	primary  string
	fallback string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b under name. The first registered backend is the primary
// until SetPrimary says otherwise.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
	if r.primary == "" {
		r.primary = name
	}
}

// SetPrimary sets the primary backend by name.
func (r *Registry) SetPrimary(name string) {
	r.mu.Lock()
	r.primary = name
	r.mu.Unlock()
}

// SetFallback sets the fallback backend by name.
func (r *Registry) SetFallback(name string) {
	r.mu.Lock()
	r.fallback = name
	r.mu.Unlock()
}

// Get returns a backend by name, or false if not found.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Primary returns the primary backend, or nil if none configured.
func (r *Registry) Primary() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[r.primary]
}

// Fallback returns the fallback backend. It is nil when unset, unknown or
// equal to the primary.
func (r *Registry) Fallback() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback == "" || r.fallback == r.primary {
		return nil
	}
	return r.backends[r.fallback]
}

// Chain returns the backends TranscribeWithFallback tries, in order.
func (r *Registry) Chain() []Backend {
	var chain []Backend
	if p := r.Primary(); p != nil {
		chain = append(chain, p)
		if f := r.Fallback(); f != nil {
			chain = append(chain, f)
		}
	}
	return chain
}

// Backends returns every registered name: the primary and fallback first,
// then the rest sorted.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names, rest []string
	for _, n := range []string{r.primary, r.fallback} {
		if _, ok := r.backends[n]; ok && (len(names) == 0 || names[0] != n) {
			names = append(names, n)
		}
	}
	for n := range r.backends {
		if n != r.primary && n != r.fallback {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// TranscribeWithFallback runs the chain until one backend succeeds. A
// cancelled context stops the chain immediately. The returned result is
// stamped with the backend that produced it.
func (r *Registry) TranscribeWithFallback(ctx context.Context, filePath string, opts TranscribeOptions) (*Result, error) {
	chain := r.Chain()
	if len(chain) == 0 {
		return nil, ErrNoBackend
	}

	var failures []string
	var lastErr error
	for _, b := range chain {
		result, err := b.TranscribeFile(ctx, filePath, opts)
		if err == nil {
			if result != nil && result.Backend == "" {
				result.Backend = b.Name()
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("asr: backend %q: %w", b.Name(), ctx.Err())
		}
		failures = append(failures, b.Name()+": "+err.Error())
		lastErr = err
	}

	if len(failures) == 1 {
		return nil, fmt.Errorf("asr: backend %q failed: %w", chain[0].Name(), lastErr)
	}
	return nil, fmt.Errorf("asr: every backend failed (%s): %w", strings.Join(failures, "; "), lastErr)
}
