// buffer.go: Pooled buffers for event formatting
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

// SafeBufferPool is a thread-safe pool of record buffers built on a
// channel. A buffer handed to Put is only ever handed out again by a
// later Get, so a formatted record can be written to the file and then
// recycled without any risk of concurrent reuse.
type SafeBufferPool struct {
	bufferChan chan []byte
	maxSize    int
}

// newSafeBufferPool creates a pool pre-populated with poolSize buffers
// of bufferSize capacity each.
func newSafeBufferPool(poolSize, bufferSize int) *SafeBufferPool {
	pool := &SafeBufferPool{
		bufferChan: make(chan []byte, poolSize),
		maxSize:    bufferSize,
	}

	for i := 0; i < poolSize; i++ {
		pool.bufferChan <- make([]byte, 0, bufferSize)
	}

	return pool
}

// Get returns an empty buffer ready for appending, reusing a pooled
// one when available.
func (p *SafeBufferPool) Get() []byte {
	select {
	case buf := <-p.bufferChan:
		return buf[:0]
	default:
		// Pool empty, create a new buffer
		return make([]byte, 0, p.maxSize)
	}
}

// Put returns a buffer to the pool (non-blocking). Buffers that grew
// past the pool's size were reallocated by append and are left to the
// GC.
func (p *SafeBufferPool) Put(buf []byte) {
	if cap(buf) != p.maxSize {
		return
	}

	buf = buf[:0]
	select {
	case p.bufferChan <- buf:
		// Successfully returned to pool
	default:
		// Pool full, let GC handle this buffer
	}
}

// Global pool for formatted records. Most log lines fit the 1KB
// buffers; oversized records fall back to plain allocations.
var recordPool = newSafeBufferPool(100, 1024)
