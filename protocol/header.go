// File: protocol/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/momentics/rostersync/api"
)

// Header opens every server reply: the receiver's assigned id and the number
// of records that follow.
type Header struct {
	AssignedID  int32
	RecordCount uint32
}

// MarshalTo writes h into dst[:HeaderSize].
func (h Header) MarshalTo(dst []byte) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("%w: header buffer is %d bytes", api.ErrInvalidRecord, len(dst))
	}
	ByteOrder.PutUint32(dst[0:4], uint32(h.AssignedID))
	ByteOrder.PutUint32(dst[4:8], h.RecordCount)
	return nil
}

// Marshal returns the encoded header.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	_ = h.MarshalTo(b)
	return b
}

// DecodeHeader parses a header from b[:HeaderSize].
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes", api.ErrInvalidRecord, len(b))
	}
	return Header{
		AssignedID:  int32(ByteOrder.Uint32(b[0:4])),
		RecordCount: ByteOrder.Uint32(b[4:8]),
	}, nil
}
