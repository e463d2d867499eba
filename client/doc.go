// Package client keeps one local record synchronized with a roster sync
// server.
//
// A Session owns a background worker that performs one network cycle per
// publish: send the local record, receive the server's header and the
// records of every other client, refresh the roster and expire clients that
// were not in the broadcast. The application drives the session by polling
// State:
//
//	s.Start()
//	for running {
//		switch s.State() {
//		case api.StateWrite:
//			copy(local.Payload, myState)
//			s.Publish()
//		case api.StateRead:
//			for r := s.Next(); r != nil; r = s.Next() {
//				peers[r.ID] = r.Clone()
//			}
//		}
//	}
//	s.Close()
//
// Connection problems never surface as errors: the worker reconnects and
// retries on its own, and AssignedID drops to zero while it does.
package client
