// Package wire carries the messages and service definitions exchanged
// between peers, and between a peer and the printer.
//
// This environment has no protoc available, so these messages are
// plain structs encoded with the JSON codec registered in codec.go
// instead of types generated from mutex.proto by protoc-gen-go. The service descriptors and client
// stubs below are written in the exact shape protoc-gen-go-grpc emits,
// so the transport still rides on real gRPC (HTTP/2 framing,
// deadlines, interceptors); only the marshaling differs.
package wire

// AccessRequest is sent by a peer entering WANTED to every other peer.
type AccessRequest struct {
	ClientID         int32 `json:"client_id"`
	LamportTimestamp int64 `json:"lamport_timestamp"`
	RequestNumber    int64 `json:"request_number"`
}

// AccessResponse is the reply to an AccessRequest. AccessGranted is
// always true in this protocol: a response is only ever sent once the
// responder has decided (immediately or after a deferred wait) that
// the requester may proceed.
type AccessResponse struct {
	AccessGranted    bool  `json:"access_granted"`
	LamportTimestamp int64 `json:"lamport_timestamp"`
}

// AccessRelease is broadcast by a peer after it leaves the critical
// section. Receivers only advance their clock and log it.
type AccessRelease struct {
	ClientID         int32 `json:"client_id"`
	LamportTimestamp int64 `json:"lamport_timestamp"`
	RequestNumber    int64 `json:"request_number"`
}

// PrintRequest is a peer's unary call to the printer while HELD.
type PrintRequest struct {
	ClientID         int32  `json:"client_id"`
	MessageContent   string `json:"message_content"`
	LamportTimestamp int64  `json:"lamport_timestamp"`
	RequestNumber    int64  `json:"request_number"`
}

// PrintResponse is the printer's confirmation.
type PrintResponse struct {
	Success             bool   `json:"success"`
	ConfirmationMessage string `json:"confirmation_message"`
	LamportTimestamp    int64  `json:"lamport_timestamp"`
}

// Empty is the response to ReleaseAccess; it carries nothing.
type Empty struct{}
