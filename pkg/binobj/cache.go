package binobj

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Describer is implemented by record types that declare their own layout.
// DescribeLayout is called at most once per Cache.
type Describer[T any] interface {
	DescribeLayout(l *Layout[T])
}

// Cache holds one Layout per record type.
type Cache struct {
	entries sync.Map // type key -> *cacheEntry
	builds  atomic.Int64
}

type cacheEntry struct {
	once   sync.Once
	layout any
	err    error
}

// DefaultCache is shared by readers created without WithCache.
var DefaultCache = NewCache()

// NewCache returns an empty layout cache.
func NewCache() *Cache {
	return &Cache{}
}

// typeKey identifies T by the dynamic type of a nil *T.
func typeKey[T any]() any {
	return (*T)(nil)
}

// Builds returns how many layouts this cache has constructed.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

// Len returns the number of record types with an entry.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Define builds the layout for T immediately and stores it, replacing any
// earlier entry. Use it for types that cannot implement Describer.
func Define[T any](c *Cache, build func(l *Layout[T])) *Layout[T] {
	l := newLayout[T]()
	build(l)
	e := &cacheEntry{layout: l}
	e.once.Do(func() {})
	c.entries.Store(typeKey[T](), e)
	c.builds.Add(1)
	return l
}

// Describe returns T's layout, building it on first use.
func Describe[T any](c *Cache) (*Layout[T], error) {
	return describe[T](c, slog.Default())
}

func describe[T any](c *Cache, logger *slog.Logger) (*Layout[T], error) {
	key := typeKey[T]()
	v, ok := c.entries.Load(key)
	if !ok {
		v, _ = c.entries.LoadOrStore(key, &cacheEntry{})
	}
	e := v.(*cacheEntry)
	e.once.Do(func() {
		l := newLayout[T]()
		defer func() {
			if p := recover(); p != nil {
				e.layout = nil
				e.err = configErrorf(l.name, "", "describing layout panicked: %v", p)
			}
		}()
		d, ok := any(new(T)).(Describer[T])
		if !ok {
			e.err = configErrorf(l.name, "", "type has no binary layout")
			return
		}
		d.DescribeLayout(l)
		e.layout = l
		c.builds.Add(1)
		logger.Debug("Built record layout", "type", l.name, "field_count", len(l.fields))
	})
	if e.err != nil {
		return nil, e.err
	}
	return e.layout.(*Layout[T]), nil
}
