// Package server is a reference roster sync server.
//
// Each connection sends one fixed-size record at a time. The server stamps
// the record with the connection's client id, stores it and answers with a
// header followed by the latest record of every other connected client. A
// client id is handed out on the connection's first record and returned to a
// reuse queue when the connection ends.
//
// Besides raw TCP the server speaks the same protocol over WebSocket on the
// admin router's /sync endpoint.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package server
