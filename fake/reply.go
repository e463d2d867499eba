// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import "github.com/momentics/rostersync/protocol"

// EncodeReply builds a server reply: header for assigned followed by records.
// The header's count is len(records).
func EncodeReply(assigned int32, records ...protocol.Record) []byte {
	out := protocol.Header{AssignedID: assigned, RecordCount: uint32(len(records))}.Marshal()
	return append(out, EncodeRecords(records...)...)
}

// EncodeRecords concatenates encoded records.
func EncodeRecords(records ...protocol.Record) []byte {
	var out []byte
	for i := range records {
		frame := make([]byte, records[i].Size())
		protocol.PutRecordID(frame, records[i].ID)
		copy(frame[protocol.IDSize:], records[i].Payload)
		out = append(out, frame...)
	}
	return out
}

// Rec is shorthand for a record with a string payload.
func Rec(id uint32, payload string) protocol.Record {
	return protocol.Record{ID: id, Payload: []byte(payload)}
}
