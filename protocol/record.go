// File: protocol/record.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size record codec. A record is a 32-bit little-endian client id
// followed by an opaque payload; every record in a session has the same size.

package protocol

import (
	"fmt"
	"io"

	"github.com/momentics/rostersync/api"
)

// Record is one client's state as exchanged on the wire.
type Record struct {
	ID      uint32
	Payload []byte
}

// Size returns the encoded length of r.
func (r *Record) Size() int {
	return IDSize + len(r.Payload)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() Record {
	p := make([]byte, len(r.Payload))
	copy(p, r.Payload)
	return Record{ID: r.ID, Payload: p}
}

// RecordID reads the leading client id of an encoded record.
// frame must hold at least IDSize bytes.
func RecordID(frame []byte) uint32 {
	return ByteOrder.Uint32(frame[:IDSize])
}

// PutRecordID overwrites the leading client id of an encoded record.
func PutRecordID(frame []byte, id uint32) {
	ByteOrder.PutUint32(frame[:IDSize], id)
}

// Codec encodes and decodes records of one fixed size.
type Codec struct {
	size int
}

// NewCodec validates size and returns a codec for it.
func NewCodec(size int) (Codec, error) {
	if size < IDSize || size > MaxRecordSize {
		return Codec{}, fmt.Errorf("%w: record size %d outside [%d, %d]",
			api.ErrInvalidConfig, size, IDSize, MaxRecordSize)
	}
	return Codec{size: size}, nil
}

// RecordSize returns the fixed encoded size.
func (c Codec) RecordSize() int {
	return c.size
}

// PayloadSize returns the payload length implied by the record size.
func (c Codec) PayloadSize() int {
	return c.size - IDSize
}

// NewFrame allocates a zeroed buffer of one encoded record.
func (c Codec) NewFrame() []byte {
	return make([]byte, c.size)
}

// Encode writes r into dst, which must be exactly RecordSize bytes.
func (c Codec) Encode(dst []byte, r *Record) error {
	if len(dst) != c.size {
		return fmt.Errorf("%w: buffer is %d bytes, want %d", api.ErrInvalidRecord, len(dst), c.size)
	}
	if r.Size() != c.size {
		return fmt.Errorf("%w: record is %d bytes, want %d", api.ErrInvalidRecord, r.Size(), c.size)
	}
	PutRecordID(dst, r.ID)
	copy(dst[IDSize:], r.Payload)
	return nil
}

// Decode returns a view of frame. Payload aliases frame.
func (c Codec) Decode(frame []byte) (Record, error) {
	if len(frame) != c.size {
		return Record{}, fmt.Errorf("%w: frame is %d bytes, want %d", api.ErrInvalidRecord, len(frame), c.size)
	}
	return Record{ID: RecordID(frame), Payload: frame[IDSize:]}, nil
}

// ReadFrame fills frame from r, returning io.EOF only when no byte was read.
func (c Codec) ReadFrame(r io.Reader, frame []byte) error {
	if len(frame) != c.size {
		return fmt.Errorf("%w: frame is %d bytes, want %d", api.ErrInvalidRecord, len(frame), c.size)
	}
	_, err := io.ReadFull(r, frame)
	return err
}
