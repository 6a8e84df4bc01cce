// Package codecache provides content-addressed caching of unlinked code
// blocks. Blocks are keyed by a hash of their source text and
// generation flags, held in an in-memory index, and optionally written
// through to a persistent store as canonical CBOR blobs.
package codecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skink-lang/skink/bytecode"
)

// ErrNotFound is returned by stores when no blob exists for a key.
var ErrNotFound = errors.New("codecache: not found")

// Key identifies a cached code block by content: the hash of its source
// text together with the generation flags that shaped compilation.
type Key [32]byte

// String returns the key in hex form.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ParseKey parses a key from its hex form.
func ParseKey(s string) (Key, error) {
	var key Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("codecache: invalid key %q: %w", s, err)
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("codecache: invalid key %q: want %d bytes, got %d", s, len(key), len(b))
	}
	copy(key[:], b)
	return key, nil
}

// SourceKey computes the cache key for source text compiled with the
// given kind and strictness. Equal inputs always produce equal keys.
func SourceKey(source string, kind bytecode.CodeKind, strict bool) Key {
	h := sha256.New()
	h.Write([]byte(source))
	flags := []byte{byte(kind), 0}
	if strict {
		flags[1] = 1
	}
	h.Write(flags)
	var key Key
	h.Sum(key[:0])
	return key
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for cache events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithStore attaches a persistent store. Misses read through it and new
// entries are written through to it.
func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// Cache is a thread-safe, content-addressed index of unlinked code
// blocks. All callers asking for the same key converge on the same
// block pointer.
type Cache struct {
	mu     sync.RWMutex
	codes  map[Key]*bytecode.Code
	logger zerolog.Logger
	store  Store
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		codes:  map[Key]*bytecode.Code{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the block cached under the key. On a miss with a store
// attached, the store is consulted and a found blob is decoded and kept
// in memory for later lookups.
func (c *Cache) Get(ctx context.Context, key Key) (*bytecode.Code, bool) {
	c.mu.RLock()
	code, ok := c.codes[key]
	c.mu.RUnlock()
	if ok {
		return code, true
	}
	if c.store == nil {
		return nil, false
	}

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("code store read failed")
		}
		return nil, false
	}
	code, err = Unmarshal(data)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("discarding undecodable cached code")
		return nil, false
	}
	return c.intern(key, code), true
}

// Put caches a block under the key, replacing any previous entry, and
// writes it through to the store when one is attached. A block whose
// instruction stream was discarded stays memory-only.
func (c *Cache) Put(ctx context.Context, key Key, code *bytecode.Code) error {
	c.mu.Lock()
	c.codes[key] = code
	c.mu.Unlock()
	return c.persist(ctx, key, code)
}

// GetOrCompile returns the block cached under the key, running compile
// on a miss and caching its result. Concurrent callers may race to
// compile the same key; the first result stored wins and the others are
// discarded, so every caller gets the same pointer.
func (c *Cache) GetOrCompile(ctx context.Context, key Key, compile func() (*bytecode.Code, error)) (*bytecode.Code, error) {
	if code, ok := c.Get(ctx, key); ok {
		return code, nil
	}
	code, err := compile()
	if err != nil {
		return nil, err
	}
	interned := c.intern(key, code)
	if interned != code {
		return interned, nil
	}
	c.logger.Debug().Str("key", key.String()).Str("name", code.Name()).Msg("cached compiled code")
	if err := c.persist(ctx, key, code); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("code store write failed")
	}
	return code, nil
}

// intern stores the block under the key unless another block got there
// first, and returns whichever block the cache now holds.
func (c *Cache) intern(key Key, code *bytecode.Code) *bytecode.Code {
	c.mu.Lock()
	if existing, ok := c.codes[key]; ok {
		c.mu.Unlock()
		return existing
	}
	c.codes[key] = code
	c.mu.Unlock()
	return code
}

func (c *Cache) persist(ctx context.Context, key Key, code *bytecode.Code) error {
	if c.store == nil || !code.HasInstructions() {
		return nil
	}
	data, err := Marshal(code)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, key, data)
}

// Len returns the number of blocks held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.codes)
}

// Prune evicts blocks that have reached the maximum collection age
// without an optimizing tier ever compiling them, returning the evicted
// keys. Persistent copies are untouched, so pruned code reloads instead
// of recompiling.
func (c *Cache) Prune() []Key {
	c.mu.Lock()
	var evicted []Key
	for key, code := range c.codes {
		if code.Age() >= bytecode.MaxAge && code.DidOptimize() != bytecode.True {
			delete(c.codes, key)
			evicted = append(evicted, key)
		}
	}
	c.mu.Unlock()
	if len(evicted) > 0 {
		c.logger.Debug().Int("count", len(evicted)).Msg("pruned aged code blocks")
	}
	return evicted
}
