// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// State tells the application which session operation is currently allowed.
type State int32

const (
	// StateBusy: neither publishing nor reading is allowed.
	StateBusy State = iota
	// StateWrite: Publish is allowed.
	StateWrite
	// StateRead: Next or Snapshot is allowed.
	StateRead
)

func (s State) String() string {
	switch s {
	case StateWrite:
		return "write"
	case StateRead:
		return "read"
	default:
		return "busy"
	}
}
