package mmsh

import (
	"errors"
	"fmt"
)

// Sentinel errors for MMSH session handling. Use errors.Is to match them
// through the typed wrappers below.
var (
	ErrProtocolCorruption = errors.New("mmsh: protocol corruption")
	ErrNoHeader           = errors.New("mmsh: response ended before an ASF header")
	ErrClosed             = errors.New("mmsh: downloader closed")
	ErrUnsupportedScheme  = errors.New("mmsh: unsupported url scheme")
)

// CorruptionError describes a framing violation in the packet stream. It
// matches ErrProtocolCorruption.
type CorruptionError struct {
	Type     PacketType
	Sequence uint8
	Reason   string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("mmsh: protocol corruption: %s (type 0x%02X, seq %d)", e.Reason, uint8(e.Type), e.Sequence)
}

func (e *CorruptionError) Unwrap() error {
	return ErrProtocolCorruption
}

// TransportError wraps a failure reported by the underlying transport.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mmsh: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SinkError wraps a failure returned by the sink while writing media bytes.
type SinkError struct {
	Offset int64
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("mmsh: sink write at %d: %v", e.Offset, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
