// Package cache implements the per-callable specialization store. Each
// specializable callable owns a FunctionCache mapping signature keys to
// compiled artifacts; a Registry groups the caches of one dispatch context.
//
// The load-bearing invariant of the dispatch path lives here: for a given
// (callable, signature) pair, at most one compiled artifact is ever
// observable, and it is produced by at most one compilation. Concurrent
// misses on the same key serialize onto a single compile through a per-key
// slot. A failed compile leaves no entry behind, so a later call may retry.
//
// There is no eviction. Specializations live for the lifetime of the
// registry; unbounded growth is an accepted resource tradeoff.
package cache

import (
	"context"
	"sync"

	"github.com/wippyai/jit-runtime/pipeline"
)

// CompileFunc produces an artifact for a signature on a cache miss
type CompileFunc func(ctx context.Context) (*pipeline.Artifact, error)

// slot guards one signature key. The first caller to claim a missing key
// compiles; everyone else blocks on ready and observes the same outcome.
type slot struct {
	ready    chan struct{}
	artifact *pipeline.Artifact
	err      error
}

// FunctionCache stores the specializations of a single callable
type FunctionCache struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewFunctionCache creates an empty specialization cache
func NewFunctionCache() *FunctionCache {
	return &FunctionCache{slots: make(map[string]*slot)}
}

// Get is a pure lookup. It returns nil on a miss or while a compile for
// the key is still in flight.
func (c *FunctionCache) Get(key string) *pipeline.Artifact {
	c.mu.Lock()
	s, ok := c.slots[key]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-s.ready:
		return s.artifact
	default:
		return nil
	}
}

// Register inserts unconditionally, overwriting any stale entry for the
// same key: the recompilation policy is last write wins, no versioning.
// The cache takes over the caller's reference to the artifact; a displaced
// artifact is released.
func (c *FunctionCache) Register(ctx context.Context, key string, artifact *pipeline.Artifact) {
	c.mu.Lock()
	old, had := c.slots[key]
	done := make(chan struct{})
	close(done)
	c.slots[key] = &slot{ready: done, artifact: artifact}
	c.mu.Unlock()

	if had {
		select {
		case <-old.ready:
			if old.artifact != nil {
				old.artifact.Release(ctx)
			}
		default:
			// In-flight compile for the key; its slot is already unlinked
			// and its result will be discarded by CompileOrGet.
		}
	}
}

// CompileOrGet returns the cached artifact for key, or invokes compile
// exactly once for the key, caches the result, and returns it. Concurrent
// callers for the same missing key block until the first compile finishes.
// On compile failure no entry is cached and the error propagates to every
// blocked caller. The cache takes over the compiled artifact's reference;
// callers borrow the returned artifact for the duration of the invocation.
func (c *FunctionCache) CompileOrGet(ctx context.Context, key string, compile CompileFunc) (*pipeline.Artifact, error) {
	c.mu.Lock()
	if s, ok := c.slots[key]; ok {
		c.mu.Unlock()
		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if s.err != nil {
			return nil, s.err
		}
		return s.artifact, nil
	}

	s := &slot{ready: make(chan struct{})}
	c.slots[key] = s
	c.mu.Unlock()

	artifact, err := compile(ctx)
	if err != nil {
		// Unlink before publishing the failure so later calls can retry.
		c.mu.Lock()
		if c.slots[key] == s {
			delete(c.slots, key)
		}
		c.mu.Unlock()
		s.err = err
		close(s.ready)
		return nil, err
	}

	c.mu.Lock()
	if cur := c.slots[key]; cur != s {
		// Register displaced the in-flight slot; last write wins, so
		// discard this compile and hand out the registered artifact.
		c.mu.Unlock()
		artifact.Release(ctx)
		<-cur.ready
		s.artifact = cur.artifact
		close(s.ready)
		return cur.artifact, nil
	}
	s.artifact = artifact
	c.mu.Unlock()
	close(s.ready)
	return artifact, nil
}

// Len returns the number of completed specializations
func (c *FunctionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		select {
		case <-s.ready:
			if s.err == nil {
				n++
			}
		default:
		}
	}
	return n
}

// Keys returns the keys of completed specializations
func (c *FunctionCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.slots))
	for key, s := range c.slots {
		select {
		case <-s.ready:
			if s.err == nil {
				keys = append(keys, key)
			}
		default:
		}
	}
	return keys
}

// Close releases every cached artifact
func (c *FunctionCache) Close(ctx context.Context) error {
	c.mu.Lock()
	slots := c.slots
	c.slots = make(map[string]*slot)
	c.mu.Unlock()

	var firstErr error
	for _, s := range slots {
		select {
		case <-s.ready:
			if s.artifact != nil {
				if err := s.artifact.Release(ctx); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		default:
		}
	}
	return firstErr
}

// Registry maps callable ids to their specialization caches. It is owned
// by the dispatch context, not a process-wide singleton.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*FunctionCache
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]*FunctionCache)}
}

// ForCallable returns the cache for a callable id, creating it on first use
func (r *Registry) ForCallable(id string) *FunctionCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[id]
	if !ok {
		c = NewFunctionCache()
		r.caches[id] = c
	}
	return c
}

// Get returns a cached artifact, or nil if absent
func (r *Registry) Get(id, key string) *pipeline.Artifact {
	r.mu.Lock()
	c, ok := r.caches[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Get(key)
}

// Close releases every cache in the registry
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	caches := r.caches
	r.caches = make(map[string]*FunctionCache)
	r.mu.Unlock()

	var firstErr error
	for _, c := range caches {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
