// Package memory pools the fixed-size byte buffers the content service
// streams and hashes blobs with: each stream or hash borrows one pooled
// read buffer instead of allocating its own (the streaming path still
// sends every chunk as a fresh copy). One size, one pool: every consumer
// in this repository works in ChunkSize units.
package memory

import (
	"sync"
	"sync/atomic"
)

// ChunkSize is the fixed buffer size: the content service's streaming
// and hashing chunk.
const ChunkSize = 65536 // 64KB

// ChunkPool manages reusable ChunkSize byte slices.
type ChunkPool struct {
	pool sync.Pool

	gets int64
	news int64
}

func NewChunkPool() *ChunkPool {
	p := &ChunkPool{}
	p.pool.New = func() any {
		atomic.AddInt64(&p.news, 1)
		return make([]byte, ChunkSize)
	}
	return p
}

// Get retrieves a ChunkSize buffer from the pool.
func (p *ChunkPool) Get() []byte {
	atomic.AddInt64(&p.gets, 1)
	return p.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Undersized buffers are dropped
// rather than pooled so Get never hands out a short slice.
func (p *ChunkPool) Put(buf []byte) {
	if cap(buf) < ChunkSize {
		return
	}
	p.pool.Put(buf[:ChunkSize])
}

// ChunkPoolMetrics reports pool effectiveness.
type ChunkPoolMetrics struct {
	Gets        int64
	Allocations int64
}

// HitRate returns the fraction of Gets served without a fresh
// allocation.
func (m ChunkPoolMetrics) HitRate() float64 {
	if m.Gets == 0 {
		return 0
	}
	return float64(m.Gets-m.Allocations) / float64(m.Gets)
}

func (p *ChunkPool) Metrics() ChunkPoolMetrics {
	return ChunkPoolMetrics{
		Gets:        atomic.LoadInt64(&p.gets),
		Allocations: atomic.LoadInt64(&p.news),
	}
}

var defaultChunkPool = NewChunkPool()

// GetChunk retrieves a buffer from the default pool.
func GetChunk() []byte { return defaultChunkPool.Get() }

// PutChunk returns a buffer to the default pool.
func PutChunk(buf []byte) { defaultChunkPool.Put(buf) }
