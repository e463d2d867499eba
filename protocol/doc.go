// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire format of the roster sync protocol. Per cycle the client sends one
// fixed-size Record carrying its own state; the server answers with a Header
// followed by Header.RecordCount records, one per other known client.
// All integers are little-endian regardless of host architecture.
package protocol
