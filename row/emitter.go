package row

import (
	"context"
	"sync"
)

// Emitter pushes a record to a named downstream channel.
type Emitter interface {
	Emit(ctx context.Context, channel string, meta *Meta, r Row) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, channel string, meta *Meta, r Row) error

func (f EmitterFunc) Emit(ctx context.Context, channel string, meta *Meta, r Row) error {
	return f(ctx, channel, meta, r)
}

// Collector is a thread-safe in-memory Emitter keyed by channel name.
type Collector struct {
	mu    sync.Mutex
	rows  map[string][]Row
	metas map[string]*Meta
	order []string
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		rows:  make(map[string][]Row),
		metas: make(map[string]*Meta),
	}
}

// Emit records r under channel.
func (c *Collector) Emit(_ context.Context, channel string, meta *Meta, r Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.metas[channel]; !seen {
		c.order = append(c.order, channel)
	}
	c.metas[channel] = meta
	c.rows[channel] = append(c.rows[channel], r.Clone())
	return nil
}

// Rows returns a copy of the rows emitted to channel.
func (c *Collector) Rows(channel string) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CloneAll(c.rows[channel])
}

// Meta returns the last schema seen on channel.
func (c *Collector) Meta(channel string) *Meta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metas[channel]
}

// Channels returns channel names in first-emit order.
func (c *Collector) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}
