package engine

import (
	"sync"
	"time"
)

// Context is the shared state of one store: every group and array handle
// opened through it holds a reference.
type Context struct {
	uri   string
	store Store
	stats *Stats

	lk     sync.Mutex
	refs   int
	lastTS uint64
}

// NewContext opens the store for uri. The returned context holds one
// reference.
func NewContext(uri string) (*Context, error) {
	store, err := OpenStore(uri)
	if err != nil {
		return nil, err
	}
	return &Context{uri: uri, store: store, stats: newStats(), refs: 1}, nil
}

// NewContextWithStore wraps an existing store.
func NewContextWithStore(uri string, store Store) *Context {
	return &Context{uri: uri, store: store, stats: newStats(), refs: 1}
}

func (c *Context) Store() Store {
	return c.store
}

func (c *Context) Stats() *Stats {
	return c.stats
}

// Retain adds a reference and returns c.
func (c *Context) Retain() *Context {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.refs++
	return c
}

// Release drops a reference. The context is unusable once the count
// reaches zero.
func (c *Context) Release() {
	c.lk.Lock()
	defer c.lk.Unlock()
	if c.refs == 0 {
		logger.Warn("context for ", c.uri, " released too many times")
		return
	}
	c.refs--
	if c.refs == 0 {
		logger.Info("context for ", c.uri, " closed")
	}
}

// Refs is the current reference count.
func (c *Context) Refs() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.refs
}

func (c *Context) check() error {
	if c == nil || c.Refs() == 0 {
		return ErrClosed
	}
	return nil
}

// nextTimestamp returns a millisecond timestamp strictly after every one
// handed out before, so fragments written in a burst stay ordered.
func (c *Context) nextTimestamp() uint64 {
	c.lk.Lock()
	defer c.lk.Unlock()
	ts := uint64(time.Now().UnixMilli())
	if ts <= c.lastTS {
		ts = c.lastTS + 1
	}
	c.lastTS = ts
	return ts
}
