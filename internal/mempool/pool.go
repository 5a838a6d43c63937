// Package mempool keeps size-bucketed slice pools to cut allocations on the
// per-frame hot path (gradient buffers, label maps, hysteresis stacks).
package mempool

import "sync"

// Pool is a size-bucketed pool of []T buffers. The zero value is ready to use.
type Pool[T any] struct {
	buckets sync.Map // key: size class (int), value: *sync.Pool
}

// sizeClass rounds n up to the next multiple of 1024 (minimum 1024).
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	return (n + step - 1) / step * step
}

func (p *Pool[T]) bucket(cls int) *sync.Pool {
	v, _ := p.buckets.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return v.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed buffer of length n. The capacity may be larger.
// Return it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	bp, ok := p.bucket(cls).Get().(*[]T)
	if !ok || cap(*bp) < cls {
		return make([]T, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// Put returns a buffer to the pool. Nil and foreign-sized slices are ignored.
func (p *Pool[T]) Put(buf []T) {
	if cap(buf) == 0 || cap(buf) != sizeClass(cap(buf)) {
		return
	}
	full := buf[:cap(buf)]
	p.bucket(cap(buf)).Put(&full)
}

var (
	float32s Pool[float32]
	ints     Pool[int]
)

// GetFloat32 retrieves a zeroed []float32 of length n from the shared pool.
func GetFloat32(n int) []float32 { return float32s.Get(n) }

// PutFloat32 returns a buffer obtained from GetFloat32.
func PutFloat32(buf []float32) { float32s.Put(buf) }

// GetInt retrieves a zeroed []int of length n from the shared pool.
func GetInt(n int) []int { return ints.Get(n) }

// PutInt returns a buffer obtained from GetInt.
func PutInt(buf []int) { ints.Put(buf) }
