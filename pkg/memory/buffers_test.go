package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsChunkSizeBuffer(t *testing.T) {
	p := NewChunkPool()
	buf := p.Get()
	assert.Len(t, buf, ChunkSize)
}

func TestPutGetReusesBuffer(t *testing.T) {
	p := NewChunkPool()
	buf := p.Get()
	buf[0] = 0xAB
	p.Put(buf)

	// sync.Pool gives no reuse guarantee (it may drop a pooled buffer),
	// so this only checks that both Gets are counted and that no more
	// than one allocation happened per Get.
	_ = p.Get()
	m := p.Metrics()
	assert.Equal(t, int64(2), m.Gets)
	assert.LessOrEqual(t, m.Allocations, int64(2))
}

func TestPutDropsUndersizedBuffer(t *testing.T) {
	p := NewChunkPool()
	p.Put(make([]byte, 16))

	buf := p.Get()
	assert.Len(t, buf, ChunkSize)
}

func TestHitRate(t *testing.T) {
	assert.Equal(t, 0.0, ChunkPoolMetrics{}.HitRate())
	assert.InDelta(t, 0.75, ChunkPoolMetrics{Gets: 4, Allocations: 1}.HitRate(), 0.001)
}

func TestConcurrentGetPut(t *testing.T) {
	p := NewChunkPool()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := p.Get()
				buf[j%ChunkSize] = byte(j)
				p.Put(buf)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), p.Metrics().Gets)
}

func BenchmarkChunkPool(b *testing.B) {
	p := NewChunkPool()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := p.Get()
		buf[0] = byte(i)
		p.Put(buf)
	}
}

func BenchmarkChunkAlloc(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := make([]byte, ChunkSize)
		buf[0] = byte(i)
	}
}
