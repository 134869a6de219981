package mmsh

import (
	pool "github.com/libp2p/go-buffer-pool"
)

const minBufferCap = 4096

// buffer accumulates delivered bytes until complete packets can be framed.
// Live bytes are data[off:]; consumed prefixes are dropped by compact.
type buffer struct {
	data []byte
	off  int
}

// write appends p, growing the backing storage from the shared pool.
func (b *buffer) write(p []byte) {
	if len(p) == 0 {
		return
	}
	if len(b.data)+len(p) > cap(b.data) {
		b.grow(len(p))
	}
	b.data = append(b.data, p...)
}

func (b *buffer) grow(extra int) {
	live := b.len()
	want := 2 * cap(b.data)
	if want < live+extra {
		want = live + extra
	}
	if want < minBufferCap {
		want = minBufferCap
	}

	next := pool.Get(want)[:live]
	copy(next, b.data[b.off:])
	b.release()
	b.data = next
}

// bytes returns the unconsumed bytes. The slice is only valid until the next
// write, compact or reset.
func (b *buffer) bytes() []byte {
	return b.data[b.off:]
}

// len returns the number of unconsumed bytes.
func (b *buffer) len() int {
	return len(b.data) - b.off
}

// advance marks the first n unconsumed bytes as consumed.
func (b *buffer) advance(n int) {
	b.off += n
}

// compact moves the unconsumed remainder to the front of the storage.
func (b *buffer) compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.data, b.data[b.off:])
	b.data = b.data[:n]
	b.off = 0
}

// reset discards every buffered byte and returns the storage to the pool.
func (b *buffer) reset() int {
	n := b.len()
	b.release()
	return n
}

func (b *buffer) release() {
	if b.data != nil {
		pool.Put(b.data[:cap(b.data)])
	}
	b.data = nil
	b.off = 0
}
