package refresh

import "sync/atomic"

// Generation issues monotonically increasing fetch ids so that only the most
// recently requested data is ever applied. A fetch that completes after a
// newer one was issued is discarded by the caller.
type Generation struct {
	counter atomic.Uint64
}

// Next issues a new fetch id.
func (g *Generation) Next() uint64 {
	return g.counter.Add(1)
}

// IsLatest reports whether id is still the most recently issued fetch id.
func (g *Generation) IsLatest(id uint64) bool {
	return g.counter.Load() == id
}
