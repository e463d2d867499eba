// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

// BytePool hands out zeroed buffers of exactly one record size.
// Buffers of any other length are dropped on Put.
type BytePool struct {
	objs *SyncPool[*[]byte]
	size int
}

var _ ObjectPool[[]byte] = (*BytePool)(nil)

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	return &BytePool{
		objs: NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
		size: size,
	}
}

// Size returns the buffer length served by the pool.
func (b *BytePool) Size() int {
	return b.size
}

// Get returns a zeroed buffer of Size bytes.
func (b *BytePool) Get() []byte {
	buf := *b.objs.Get()
	clear(buf)
	return buf
}

// Put returns buf to the pool. The caller must not touch buf afterwards.
func (b *BytePool) Put(buf []byte) {
	if len(buf) != b.size {
		return
	}
	b.objs.Put(&buf)
}
