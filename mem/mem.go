// SPDX-License-Identifier: MIT
package mem

import "sync"

// Scratch holds reusable working buffers for hot evaluation paths.
type Scratch struct {
	Kernel []float64 // one entry per fit centre
	In     []float64 // normalised input
}

// Manager hands out one Scratch bundle taken from a shared pool.
type Manager struct {
	Sc *Scratch
}

var scratchPool = sync.Pool{
	New: func() any { return new(Scratch) },
}

// NewManager returns a Manager holding a pooled Scratch bundle.
func NewManager() Manager { return Manager{Sc: scratchPool.Get().(*Scratch)} }

// Scratch returns the reusable scratch bundle.
func (m Manager) Scratch() *Scratch { return m.Sc }

// IsZero reports whether the Manager carries no scratch.
func (m Manager) IsZero() bool { return m.Sc == nil }

// FreeAll returns the scratch bundle to the pool. The Manager must not be used afterwards.
func (m Manager) FreeAll() {
	if m.Sc != nil {
		scratchPool.Put(m.Sc)
	}
}

// WithFrame runs fn with a fresh Manager and releases it on return.
func WithFrame(fn func(Manager)) {
	m := NewManager()
	defer m.FreeAll()
	fn(m)
}

// Floats returns buf resized to n, zeroed, reusing its storage when possible.
func Floats(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
