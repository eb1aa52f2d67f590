// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrInvalidArgument reports an invalid configuration or call argument.
	ErrInvalidArgument = errors.New("quicframe: invalid argument")

	// ErrInsufficientSpace reports that a generator or writer was asked to
	// serialize into a buffer too small for the frame. Callers recover
	// locally, typically by flushing the current packet.
	ErrInsufficientSpace = errors.New("quicframe: insufficient space")

	// ErrTruncated reports that a buffer ended before the frame it holds.
	ErrTruncated = errors.New("quicframe: frame truncated")

	// ErrInvalidEncoding reports a malformed frame.
	ErrInvalidEncoding = errors.New("quicframe: invalid encoding")

	// ErrUnknownFrame reports an unrecognized frame type byte.
	ErrUnknownFrame = errors.New("quicframe: unknown frame type")

	// ErrUnsupportedVersion reports a wire protocol version this package
	// does not serialize. Serialization fails closed rather than guessing
	// at ambiguous byte layouts.
	ErrUnsupportedVersion = errors.New("quicframe: unsupported protocol version")

	// ErrHeaderListTooLarge reports that a header list exceeds the
	// peer-advertised maximum before compression is even attempted.
	ErrHeaderListTooLarge = errors.New("quicframe: header list too large")

	// ErrEncoderFailure reports a failure inside the HPACK encoder.
	ErrEncoderFailure = errors.New("quicframe: header encoder failure")

	// ErrOutOfMemory reports allocator pool exhaustion.
	ErrOutOfMemory = errors.New("quicframe: memory limit exceeded")
)

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly.
var (
	// ErrWouldBlock means “no further progress without waiting”. When the
	// HEADERS-stream write function returns it, the unwritten remainder is
	// parked in the writer's leftover buffer and the call still succeeds.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means “this completion is usable and more completions will
	// follow”. Treated like ErrWouldBlock on the write path.
	ErrMore = iox.ErrMore
)
