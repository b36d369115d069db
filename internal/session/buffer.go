package session

import "sync"

// BufferPool recycles receive buffers handed from transport goroutines to fibers.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of buffers with the given initial capacity.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 4096
	}
	p := &BufferPool{size: size}
	p.pool.New = func() any {
		b := make([]byte, 0, p.size)
		return &b
	}
	return p
}

// Rent returns a copy of data in a pooled buffer. The caller owns it until Release.
func (p *BufferPool) Rent(data []byte) *[]byte {
	bp := p.pool.Get().(*[]byte)
	*bp = append((*bp)[:0], data...)
	return bp
}

// Release hands a rented buffer back. Oversized buffers are dropped.
func (p *BufferPool) Release(bp *[]byte) {
	if bp == nil || cap(*bp) > 4*p.size {
		return
	}
	*bp = (*bp)[:0]
	p.pool.Put(bp)
}
