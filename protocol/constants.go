// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Roster sync wire protocol constants

package protocol

import "encoding/binary"

const (
	// IDSize is the width of the client id leading every record.
	IDSize = 4

	// HeaderSize is the width of the per-cycle header: assigned id + record count.
	HeaderSize = 8

	// MaxRecordSize bounds a single record to keep scratch buffers sane.
	MaxRecordSize = 1 << 20 // 1 MiB

	// UnassignedID marks a client the server has not numbered yet.
	UnassignedID = 0
)

// ByteOrder is the fixed wire byte order for every integer field.
var ByteOrder = binary.LittleEndian
