// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

// Stream is the logical stream identity consumed by the packet layer. The
// transport owns the stream's lifecycle; packets hold weak references to
// it through their stream records.
type Stream struct {
	ID uint32

	flags    uint8
	nUnacked uint32
}

const streamRstSent = 1 << 0

// MarkResetSent records that a reset frame has been queued or sent for
// this stream, making its STREAM frames eligible for elision.
func (s *Stream) MarkResetSent() { s.flags |= streamRstSent }

// ResetSent reports whether a reset frame has been queued or sent.
func (s *Stream) ResetSent() bool { return s.flags&streamRstSent != 0 }

// Unacked returns the number of live stream records charged to this
// stream across all outstanding packets.
func (s *Stream) Unacked() int { return int(s.nUnacked) }

// Acked discharges one stream record, when the packet carrying it is
// acknowledged, destroyed, or its frame is elided.
func (s *Stream) Acked() { s.nUnacked-- }

// StreamRecord ties a byte range of a packet payload to the stream whose
// frame occupies it. For records carrying only a reset, Off and Len are
// zero; the record exists to account the unacknowledged RST_STREAM.
type StreamRecord struct {
	Stream     *Stream
	FrameTypes FrameTypeSet
	Off        int
	Len        int
}

// PacketOut is an outbound packet's composition buffer, sans header.
// Frames are serialized into Tail and committed with Append; stream
// frames are additionally indexed with AddStreamRecord.
type PacketOut struct {
	buf     []byte
	dataSz  int
	regenSz int
	types   FrameTypeSet
	recs    []StreamRecord
}

// Capacity returns the payload capacity in bytes.
func (p *PacketOut) Capacity() int { return len(p.buf) }

// Available returns the number of unserialized payload bytes left.
func (p *PacketOut) Available() int { return len(p.buf) - p.dataSz }

// DataSize returns the number of serialized payload bytes.
func (p *PacketOut) DataSize() int { return p.dataSz }

// RegenSize returns the size of the regeneration prefix: frames in
// [0, RegenSize) are recomputed rather than retransmitted on resend.
func (p *PacketOut) RegenSize() int { return p.regenSz }

// Data returns the serialized payload.
func (p *PacketOut) Data() []byte { return p.buf[:p.dataSz] }

// Tail returns the unserialized remainder of the payload region for a
// generator to encode into. Commit the frame with Append.
func (p *PacketOut) Tail() []byte { return p.buf[p.dataSz:] }

// FrameTypes returns the set of frame kinds present in the payload.
func (p *PacketOut) FrameTypes() FrameTypeSet { return p.types }

// Records returns the stream records in payload order. The slice is a
// read-only view, valid until the packet is next mutated.
func (p *PacketOut) Records() []StreamRecord { return p.recs }

// Append commits n bytes just serialized into Tail as one frame of the
// given kind. Regenerable frames still contiguous with the regen prefix
// extend it.
func (p *PacketOut) Append(kind FrameKind, n int) error {
	if n < 0 || n > p.Available() {
		return ErrInsufficientSpace
	}
	if kind.regenerable() && p.regenSz == p.dataSz {
		p.regenSz += n
	}
	p.dataSz += n
	p.types.Set(kind)
	return nil
}

// AddStreamRecord notes that the frame at [off, off+length) belongs to s.
// For FrameRstStream, off and length are ignored and recorded as zero.
// Consecutive frames of the same stream coalesce into one record; a new
// record charges one unacked count to s.
func (p *PacketOut) AddStreamRecord(s *Stream, kind FrameKind, off, length int) {
	if kind == FrameRstStream {
		off, length = 0, 0
	}
	if n := len(p.recs); n > 0 && p.recs[n-1].Stream == s {
		r := &p.recs[n-1]
		r.FrameTypes.Set(kind)
		if kind == FrameStream {
			r.Off, r.Len = off, length
		}
		return
	}
	var types FrameTypeSet
	types.Set(kind)
	p.recs = append(p.recs, StreamRecord{Stream: s, FrameTypes: types, Off: off, Len: length})
	s.nUnacked++
}

// ChopRegen drops the regeneration prefix, shifting the rest of the
// payload left. Stream record offsets follow; the frame-type bits of the
// regenerable kinds are cleared since their frames are gone. Used when a
// packet is re-prepared for resend.
func (p *PacketOut) ChopRegen() {
	if p.regenSz == 0 {
		return
	}
	copy(p.buf, p.buf[p.regenSz:p.dataSz])
	p.dataSz -= p.regenSz
	for i := range p.recs {
		if p.recs[i].FrameTypes.Has(FrameStream) {
			p.recs[i].Off -= p.regenSz
		}
	}
	p.types.Clear(FrameAck)
	p.types.Clear(FrameStopWaiting)
	p.regenSz = 0
}

// reset returns the packet to its acquired state. The payload is zeroed
// so pooled reuse hands out clean buffers.
func (p *PacketOut) reset() {
	p.buf = p.buf[:cap(p.buf)]
	clear(p.buf)
	p.dataSz = 0
	p.regenSz = 0
	p.types = 0
	clear(p.recs)
	p.recs = p.recs[:0]
}
