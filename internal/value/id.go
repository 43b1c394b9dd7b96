package value

import "sync/atomic"

// IDGenerator hands out process-unique, monotonically increasing document
// ids starting at idOrigin.
type IDGenerator struct {
	counter atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.counter.Store(idOrigin - 1)
	return g
}

// Next returns the next monotonic id, always >= idOrigin.
func (g *IDGenerator) Next() uint64 {
	return g.counter.Add(1)
}
