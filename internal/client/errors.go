package client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/obulab/obu-bench/internal/codec"
	"github.com/obulab/obu-bench/internal/coapbridge"
)

// ProtocolError marks an unexpected status or response code: the
// transport worked, the peer answered, the answer was not a success.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Detail
}

func protocolErrorf(format string, v ...any) error {
	return &ProtocolError{Detail: fmt.Sprintf(format, v...)}
}

// Classify maps an error to its outcome class. The order matters:
// timeouts are a distinct class even when they surface as net.Error or
// context errors from deep inside a transport stack.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	if errors.Is(err, coapbridge.ErrStartup) {
		return ClassBridgeStartup
	}
	if errors.Is(err, codec.ErrUnknownStatus) {
		return ClassUnknownStatus
	}
	if errors.Is(err, codec.ErrDecode) {
		return ClassDecode
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return ClassProtocol
	}
	var rce *coapbridge.ResponseCodeError
	if errors.As(err, &rce) {
		return ClassProtocol
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return ClassDecode
	}
	return ClassTransport
}

// DecodeError marks a response body that could not be parsed, for the
// JSON transports where codec.ErrDecode does not apply.
type DecodeError struct {
	Detail string
}

func (e *DecodeError) Error() string {
	return "decode error: " + e.Detail
}

func decodeErrorf(format string, v ...any) error {
	return &DecodeError{Detail: fmt.Sprintf(format, v...)}
}
