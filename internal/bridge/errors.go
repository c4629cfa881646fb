package bridge

import "fmt"

// RemoteError is a device failure reported by the bridge server.
type RemoteError struct {
	Op      Op
	Address uint32
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge %s 0x%08x: %s", e.Op, e.Address, e.Message)
}

// ProtocolError means the bridge connection is out of step: an unexpected
// response ID or a message that does not decode. The Client is unusable
// afterwards.
type ProtocolError struct {
	Details string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge protocol error: %s: %v", e.Details, e.Err)
	}
	return fmt.Sprintf("bridge protocol error: %s", e.Details)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
