// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package quicframe provides the packet composition core of a QUIC-based
// HTTP transport: a version-parameterized frame codec, an outbound packet
// buffer with per-stream bookkeeping, reset-stream frame elision, and an
// HTTP/2-style frame writer for the dedicated HEADERS stream.
//
// Semantics and design:
//   - Packet composition: callers serialize frames through a Codec directly
//     into a PacketOut's tail region, then commit them with Append. Frames
//     that carry stream data (or a stream reset) are additionally noted with
//     AddStreamRecord so the packet knows which byte ranges belong to which
//     logical stream.
//   - Regeneration prefix: ACK and STOP_WAITING frames appended while still
//     contiguous with the start of the payload form the regen region. These
//     frames are recomputed at resend time; ChopRegen drops them and shifts
//     the remaining payload left.
//   - Elision: when a stream is reset, ElideResetStreamFrames surgically
//     removes its STREAM frames from already-serialized packets without
//     disturbing the relative order of surviving frames. RST_STREAM frames
//     are preserved so the reset itself is still delivered.
//   - HEADERS stream: FrameWriter compresses HTTP header lists with a shared
//     HPACK encoder and emits HEADERS, CONTINUATION, SETTINGS, PRIORITY and
//     PUSH_PROMISE frames. Bytes the underlying stream cannot accept are
//     buffered and drained by Flush; iox.ErrWouldBlock is the control-flow
//     signal for backpressure, re-exposed as quicframe.ErrWouldBlock.
//   - Single-threaded cooperative: no structure in this package is safe for
//     concurrent use. All operations complete in time bounded by the packet
//     payload or header-block size.
//
// Wire format (QUIC frames, per supported version): the STREAM frame type
// byte is 1FDOOOSS, where F is the FIN bit, D marks a 2-byte data-length
// field, OOO selects 0/2/3/4/5/6/7/8 offset bytes and SS selects 1/2/3/4
// stream-id bytes. Multi-byte fields use the version's byte order (Q035
// little-endian, Q039 big-endian). Regular frames use fixed type bytes
// 0x00..0x07; ACK frames use 01NULLMM type bytes with tiered field widths.
//
// Wire format (HEADERS stream): standard HTTP/2 framing, a 9-byte header
// carrying a 24-bit big-endian payload length, type, flags, and a 31-bit
// stream identifier with the reserved bit clear.
package quicframe

// MaxPayloadSize is the largest packet payload the allocator hands out:
// a 1500-byte Ethernet MTU less IP, UDP, and public-header overhead.
const MaxPayloadSize = 1452

// FrameKind identifies a QUIC frame type. The values form a dense
// enumeration so a FrameTypeSet can index them as bits; kinds 0..7 equal
// their wire type byte.
type FrameKind uint8

const (
	FramePadding FrameKind = iota
	FrameRstStream
	FrameConnClose
	FrameGoaway
	FrameWindowUpdate
	FrameBlocked
	FrameStopWaiting
	FramePing
	FrameStream
	FrameAck

	frameKindCount
)

var frameKindNames = [frameKindCount]string{
	"PADDING", "RST_STREAM", "CONNECTION_CLOSE", "GOAWAY", "WINDOW_UPDATE",
	"BLOCKED", "STOP_WAITING", "PING", "STREAM", "ACK",
}

func (k FrameKind) String() string {
	if k < frameKindCount {
		return frameKindNames[k]
	}
	return "UNKNOWN"
}

// regenerable reports whether frames of this kind may live in the regen
// region: their contents are recomputed at resend time.
func (k FrameKind) regenerable() bool {
	return k == FrameAck || k == FrameStopWaiting
}

// FrameTypeSet is a bitmask over FrameKind. Bit 1<<k is set iff at least
// one frame of kind k is present in the associated payload.
type FrameTypeSet uint16

func (s *FrameTypeSet) Set(k FrameKind)     { *s |= 1 << k }
func (s *FrameTypeSet) Clear(k FrameKind)   { *s &^= 1 << k }
func (s FrameTypeSet) Has(k FrameKind) bool { return s&(1<<k) != 0 }
func (s FrameTypeSet) Empty() bool          { return s == 0 }

// FrameKindOf classifies a frame by its first byte. STREAM and ACK frames
// occupy the high type-byte ranges; the rest are fixed values.
func FrameKindOf(typeByte byte) (FrameKind, error) {
	switch {
	case typeByte&0x80 != 0:
		return FrameStream, nil
	case typeByte&0x40 != 0:
		return FrameAck, nil
	case typeByte <= byte(FramePing):
		return FrameKind(typeByte), nil
	default:
		return 0, ErrUnknownFrame
	}
}
