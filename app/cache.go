package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/internal"
	"github.com/kris96tian/MOFAX-Online/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DerivationCache memoizes derived tables and figures by
// (model id, derivation, parameters). Cached values are shared between
// requests and must be treated as read-only. Errors are never cached.
type DerivationCache struct {
	entries *lru.Cache[string, any]
	flight  singleflight.Group
	metrics *metrics.Metrics
	logger  *internal.Logger

	// mu orders stores against ForgetModel so a derivation that finishes
	// after its model was released never lands in entries
	mu       sync.Mutex
	released *lru.Cache[core.ModelID, struct{}]
}

// releasedIDs bounds the memory of forgotten models; ids are never reused
const releasedIDs = 1024

// NewDerivationCache creates a cache holding at most size derivations
func NewDerivationCache(size int, m *metrics.Metrics) (*DerivationCache, error) {
	entries, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create derivation cache: %w", err)
	}
	released, err := lru.New[core.ModelID, struct{}](releasedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create derivation cache: %w", err)
	}
	return &DerivationCache{
		entries:  entries,
		metrics:  m,
		logger:   internal.DefaultLogger.With("DerivationCache"),
		released: released,
	}, nil
}

func derivationKey(id core.ModelID, derivation, params string) string {
	return id.String() + "|" + derivation + "|" + params
}

// derive returns the cached value for the key or computes it once, even
// when several requests ask for it concurrently
func derive[T any](c *DerivationCache, id core.ModelID, derivation, params string, fn func() (T, error)) (T, error) {
	key := derivationKey(id, derivation, params)
	if v, ok := c.entries.Get(key); ok {
		c.metrics.ObserveDerivation(derivation, true)
		return v.(T), nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		c.metrics.ObserveDerivation(derivation, false)
		start := time.Now()
		out, err := fn()
		if err != nil {
			c.logger.Debug("%s failed for model %s: %v", derivation, id, err)
			return nil, err
		}
		c.logger.Trace("%s (%s) computed in %s", derivation, params, time.Since(start))
		c.store(id, key, out)
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *DerivationCache) store(id core.ModelID, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released.Contains(id) {
		return
	}
	c.entries.Add(key, v)
}

// ForgetModel drops every derivation of the model and returns how many were
// dropped. Derivations of the model still running are not stored.
func (c *DerivationCache) ForgetModel(id core.ModelID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released.Add(id, struct{}{})

	prefix := id.String() + "|"
	n := 0
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
			n++
		}
	}
	return n
}

// Len reports the number of cached derivations
func (c *DerivationCache) Len() int {
	return c.entries.Len()
}
