// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

import (
	"code.hybscloud.com/quicframe/internal/bo"
)

// Generators encode exactly one frame into the prefix of the supplied
// buffer and return the number of bytes written, or ErrInsufficientSpace
// when the buffer cannot hold the frame. Parsers consume one frame from
// the prefix of the buffer and return bytes consumed; slices held by the
// returned values alias the input buffer.

// ReadFunc supplies STREAM frame data. It fills p with up to len(p) bytes,
// returning the count and whether the stream's final byte was reached. It
// must be infallible aside from returning zero.
type ReadFunc func(p []byte) (n int, fin bool)

// StreamFrame is a parsed STREAM frame. Data aliases the parse input.
type StreamFrame struct {
	StreamID uint32
	Offset   uint64
	Fin      bool
	Data     []byte
}

// RstStreamFrame is a parsed RST_STREAM frame.
type RstStreamFrame struct {
	StreamID  uint32
	Offset    uint64
	ErrorCode uint32
}

// AckRange is an inclusive range of acknowledged packet numbers.
type AckRange struct {
	High uint64
	Low  uint64
}

// AckInfo describes an ACK frame. Ranges are ordered descending and must
// not touch or overlap; Ranges[0].High equals LargestAcked.
type AckInfo struct {
	LargestAcked uint64
	Delay        uint16
	Ranges       []AckRange
}

// ConnCloseFrame is a parsed CONNECTION_CLOSE frame. Reason aliases the
// parse input.
type ConnCloseFrame struct {
	ErrorCode uint32
	Reason    []byte
}

// GoawayFrame is a parsed GOAWAY frame. Reason aliases the parse input.
type GoawayFrame struct {
	ErrorCode    uint32
	LastStreamID uint32
	Reason       []byte
}

// WindowUpdateFrame is a parsed WINDOW_UPDATE frame.
type WindowUpdateFrame struct {
	StreamID uint32
	Offset   uint64
}

// BlockedFrame is a parsed BLOCKED frame.
type BlockedFrame struct {
	StreamID uint32
}

// STREAM frame type byte: 1FDOOOSS.
const (
	streamTypeBit    = 0x80
	streamFinBit     = 0x40
	streamDataLenBit = 0x20
)

// offLenIndex maps an offset field width to its OOO bits; offWidths is the
// inverse. Width 0 means the offset is zero and absent; the minimum
// present width is 2 bytes.
var offWidths = [8]int{0, 2, 3, 4, 5, 6, 7, 8}

func offLenIndex(width int) int {
	if width == 0 {
		return 0
	}
	return width - 1
}

func streamOffsetWidth(offset uint64) int {
	if offset == 0 {
		return 0
	}
	if n := bo.Len(offset); n > 2 {
		return n
	}
	return 2
}

// GenStreamFrame writes a STREAM frame for streamID at the given stream
// offset. Field widths are the smallest encodings that fit streamID and
// offset. read is called at most once to fill the data region with up to
// size bytes, bounded by the space left in b; when size is zero read is
// not called and fin alone decides the FIN bit. The data-length field is
// always emitted so the frame is self-delimiting.
func (c *Codec) GenStreamFrame(b []byte, streamID uint32, offset uint64, fin bool, size int, read ReadFunc) (int, error) {
	if size < 0 {
		return 0, ErrInvalidArgument
	}
	sidLen := bo.Len(uint64(streamID))
	offLen := streamOffsetWidth(offset)
	hdrLen := 1 + sidLen + offLen + 2

	need := hdrLen
	if size > 0 {
		need++ // at least one data byte must fit
	}
	if len(b) < need {
		return 0, ErrInsufficientSpace
	}

	max := len(b) - hdrLen
	if max > size {
		max = size
	}
	if max > 0xffff {
		max = 0xffff
	}

	n := 0
	if size > 0 {
		n, fin = read(b[hdrLen : hdrLen+max])
	}

	tb := byte(streamTypeBit | streamDataLenBit)
	if fin {
		tb |= streamFinBit
	}
	tb |= byte(offLenIndex(offLen)) << 2
	tb |= byte(sidLen - 1)

	b[0] = tb
	pos := 1
	bo.PutUint(c.bo, b[pos:], uint64(streamID), sidLen)
	pos += sidLen
	if offLen > 0 {
		bo.PutUint(c.bo, b[pos:], offset, offLen)
		pos += offLen
	}
	bo.PutUint(c.bo, b[pos:], uint64(n), 2)
	pos += 2
	return pos + n, nil
}

// ParseStreamFrame decodes a STREAM frame. When the data-length field is
// absent, the remainder of b is the frame data.
func (c *Codec) ParseStreamFrame(b []byte) (StreamFrame, int, error) {
	var f StreamFrame
	if len(b) < 1 {
		return f, 0, ErrTruncated
	}
	tb := b[0]
	if tb&streamTypeBit == 0 {
		return f, 0, ErrInvalidEncoding
	}
	f.Fin = tb&streamFinBit != 0
	dataLenPresent := tb&streamDataLenBit != 0
	offLen := offWidths[(tb>>2)&0x7]
	sidLen := int(tb&0x3) + 1

	need := 1 + sidLen + offLen
	if dataLenPresent {
		need += 2
	}
	if len(b) < need {
		return f, 0, ErrTruncated
	}
	pos := 1
	f.StreamID = uint32(bo.Uint(c.bo, b[pos:], sidLen))
	pos += sidLen
	if offLen > 0 {
		f.Offset = bo.Uint(c.bo, b[pos:], offLen)
		pos += offLen
	}
	if dataLenPresent {
		dataLen := int(bo.Uint(c.bo, b[pos:], 2))
		pos += 2
		if len(b) < pos+dataLen {
			return f, 0, ErrTruncated
		}
		f.Data = b[pos : pos+dataLen]
		return f, pos + dataLen, nil
	}
	f.Data = b[pos:]
	return f, len(b), nil
}

const rstFrameLen = 17 // type + 4 stream id + 8 offset + 4 error code

// GenRstFrame writes a RST_STREAM frame: the stream id, the stream offset
// at which the reset takes effect, and the application error code.
func (c *Codec) GenRstFrame(b []byte, streamID uint32, offset uint64, errorCode uint32) (int, error) {
	if len(b) < rstFrameLen {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FrameRstStream)
	bo.PutUint(c.bo, b[1:], uint64(streamID), 4)
	bo.PutUint(c.bo, b[5:], offset, 8)
	bo.PutUint(c.bo, b[13:], uint64(errorCode), 4)
	return rstFrameLen, nil
}

// ParseRstFrame decodes a RST_STREAM frame.
func (c *Codec) ParseRstFrame(b []byte) (RstStreamFrame, int, error) {
	var f RstStreamFrame
	if len(b) < rstFrameLen {
		return f, 0, ErrTruncated
	}
	if b[0] != byte(FrameRstStream) {
		return f, 0, ErrInvalidEncoding
	}
	f.StreamID = uint32(bo.Uint(c.bo, b[1:], 4))
	f.Offset = bo.Uint(c.bo, b[5:], 8)
	f.ErrorCode = uint32(bo.Uint(c.bo, b[13:], 4))
	return f, rstFrameLen, nil
}

// ACK frame type byte: 01NULLMM, where N marks additional ack blocks, LL
// selects the largest-acked width and MM the block-length width.
const (
	ackTypeBit   = 0x40
	ackRangesBit = 0x20
)

var ackWidths = [4]int{1, 2, 4, 6}

func ackTier(v uint64) (bits, width int) {
	switch {
	case v < 1<<8:
		return 0, 1
	case v < 1<<16:
		return 1, 2
	case v < 1<<32:
		return 2, 4
	default:
		return 3, 6
	}
}

// GenAckFrame writes an ACK frame for ai. Gaps wider than 255 packets are
// split with zero-length filler blocks; the timestamp section is empty.
func (c *Codec) GenAckFrame(b []byte, ai *AckInfo) (int, error) {
	if ai == nil || len(ai.Ranges) == 0 || ai.Ranges[0].High != ai.LargestAcked {
		return 0, ErrInvalidArgument
	}
	if ai.LargestAcked >= 1<<48 || ai.Ranges[0].High < ai.Ranges[0].Low {
		return 0, ErrInvalidArgument
	}

	// First pass: block count and width tiers.
	firstLen := ai.Ranges[0].High - ai.Ranges[0].Low + 1
	maxBlockLen := firstLen
	nBlocks := 0
	prevLow := ai.Ranges[0].Low
	for _, r := range ai.Ranges[1:] {
		if r.High < r.Low || r.High+1 >= prevLow {
			return 0, ErrInvalidArgument
		}
		gap := prevLow - r.High - 1
		nBlocks += int((gap-1)/255) + 1
		if l := r.High - r.Low + 1; l > maxBlockLen {
			maxBlockLen = l
		}
		prevLow = r.Low
	}
	if nBlocks > 0xff {
		return 0, ErrInvalidArgument
	}

	lBits, lLen := ackTier(ai.LargestAcked)
	mBits, mLen := ackTier(maxBlockLen)

	need := 1 + lLen + 2 + mLen + nBlocks*(1+mLen) + 1
	if nBlocks > 0 {
		need++ // block count byte
	}
	if len(b) < need {
		return 0, ErrInsufficientSpace
	}

	tb := byte(ackTypeBit) | byte(lBits)<<2 | byte(mBits)
	if nBlocks > 0 {
		tb |= ackRangesBit
	}
	b[0] = tb
	pos := 1
	bo.PutUint(c.bo, b[pos:], ai.LargestAcked, lLen)
	pos += lLen
	bo.PutUint(c.bo, b[pos:], uint64(ai.Delay), 2)
	pos += 2
	if nBlocks > 0 {
		b[pos] = byte(nBlocks)
		pos++
	}
	bo.PutUint(c.bo, b[pos:], firstLen, mLen)
	pos += mLen
	prevLow = ai.Ranges[0].Low
	for _, r := range ai.Ranges[1:] {
		gap := prevLow - r.High - 1
		for gap > 255 {
			b[pos] = 255
			pos++
			bo.PutUint(c.bo, b[pos:], 0, mLen)
			pos += mLen
			gap -= 255
		}
		b[pos] = byte(gap)
		pos++
		bo.PutUint(c.bo, b[pos:], r.High-r.Low+1, mLen)
		pos += mLen
		prevLow = r.Low
	}
	b[pos] = 0 // no timestamps
	return pos + 1, nil
}

// ParseAckFrame decodes an ACK frame into ai, reusing ai.Ranges when its
// capacity allows. Timestamp entries are validated and skipped.
func (c *Codec) ParseAckFrame(b []byte, ai *AckInfo) (int, error) {
	if ai == nil {
		return 0, ErrInvalidArgument
	}
	if len(b) < 1 {
		return 0, ErrTruncated
	}
	tb := b[0]
	if tb&0xc0 != ackTypeBit {
		return 0, ErrInvalidEncoding
	}
	hasRanges := tb&ackRangesBit != 0
	lLen := ackWidths[(tb>>2)&0x3]
	mLen := ackWidths[tb&0x3]

	need := 1 + lLen + 2
	if hasRanges {
		need++
	}
	need += mLen
	if len(b) < need {
		return 0, ErrTruncated
	}
	pos := 1
	ai.LargestAcked = bo.Uint(c.bo, b[pos:], lLen)
	pos += lLen
	ai.Delay = uint16(bo.Uint(c.bo, b[pos:], 2))
	pos += 2
	nBlocks := 0
	if hasRanges {
		nBlocks = int(b[pos])
		pos++
	}
	firstLen := bo.Uint(c.bo, b[pos:], mLen)
	pos += mLen
	if firstLen == 0 || firstLen > ai.LargestAcked+1 {
		return 0, ErrInvalidEncoding
	}
	ai.Ranges = append(ai.Ranges[:0], AckRange{
		High: ai.LargestAcked,
		Low:  ai.LargestAcked - firstLen + 1,
	})

	if len(b) < pos+nBlocks*(1+mLen) {
		return 0, ErrTruncated
	}
	lower := ai.Ranges[0].Low
	pendingGap := uint64(0)
	for i := 0; i < nBlocks; i++ {
		gap := uint64(b[pos])
		pos++
		blockLen := bo.Uint(c.bo, b[pos:], mLen)
		pos += mLen
		if blockLen == 0 {
			pendingGap += gap
			continue
		}
		gap += pendingGap
		pendingGap = 0
		if lower < gap+1 {
			return 0, ErrInvalidEncoding
		}
		high := lower - gap - 1
		if blockLen > high+1 {
			return 0, ErrInvalidEncoding
		}
		lower = high - blockLen + 1
		ai.Ranges = append(ai.Ranges, AckRange{High: high, Low: lower})
	}

	if len(b) < pos+1 {
		return 0, ErrTruncated
	}
	nTimestamps := int(b[pos])
	pos++
	if nTimestamps > 0 {
		tsLen := 5 + (nTimestamps-1)*3
		if len(b) < pos+tsLen {
			return 0, ErrTruncated
		}
		pos += tsLen
	}
	return pos, nil
}

// GenPaddingFrame writes n PADDING bytes.
func (c *Codec) GenPaddingFrame(b []byte, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidArgument
	}
	if len(b) < n {
		return 0, ErrInsufficientSpace
	}
	clear(b[:n])
	return n, nil
}

// GenPingFrame writes a PING frame.
func (c *Codec) GenPingFrame(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FramePing)
	return 1, nil
}

// GenConnCloseFrame writes a CONNECTION_CLOSE frame with an optional
// reason phrase.
func (c *Codec) GenConnCloseFrame(b []byte, errorCode uint32, reason []byte) (int, error) {
	if len(reason) > 0xffff {
		return 0, ErrInvalidArgument
	}
	need := 1 + 4 + 2 + len(reason)
	if len(b) < need {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FrameConnClose)
	bo.PutUint(c.bo, b[1:], uint64(errorCode), 4)
	bo.PutUint(c.bo, b[5:], uint64(len(reason)), 2)
	copy(b[7:], reason)
	return need, nil
}

// ParseConnCloseFrame decodes a CONNECTION_CLOSE frame.
func (c *Codec) ParseConnCloseFrame(b []byte) (ConnCloseFrame, int, error) {
	var f ConnCloseFrame
	if len(b) < 7 {
		return f, 0, ErrTruncated
	}
	if b[0] != byte(FrameConnClose) {
		return f, 0, ErrInvalidEncoding
	}
	f.ErrorCode = uint32(bo.Uint(c.bo, b[1:], 4))
	reasonLen := int(bo.Uint(c.bo, b[5:], 2))
	if len(b) < 7+reasonLen {
		return f, 0, ErrTruncated
	}
	f.Reason = b[7 : 7+reasonLen]
	return f, 7 + reasonLen, nil
}

// GenGoawayFrame writes a GOAWAY frame naming the last processed stream.
func (c *Codec) GenGoawayFrame(b []byte, errorCode uint32, lastStreamID uint32, reason []byte) (int, error) {
	if len(reason) > 0xffff {
		return 0, ErrInvalidArgument
	}
	need := 1 + 4 + 4 + 2 + len(reason)
	if len(b) < need {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FrameGoaway)
	bo.PutUint(c.bo, b[1:], uint64(errorCode), 4)
	bo.PutUint(c.bo, b[5:], uint64(lastStreamID), 4)
	bo.PutUint(c.bo, b[9:], uint64(len(reason)), 2)
	copy(b[11:], reason)
	return need, nil
}

// ParseGoawayFrame decodes a GOAWAY frame.
func (c *Codec) ParseGoawayFrame(b []byte) (GoawayFrame, int, error) {
	var f GoawayFrame
	if len(b) < 11 {
		return f, 0, ErrTruncated
	}
	if b[0] != byte(FrameGoaway) {
		return f, 0, ErrInvalidEncoding
	}
	f.ErrorCode = uint32(bo.Uint(c.bo, b[1:], 4))
	f.LastStreamID = uint32(bo.Uint(c.bo, b[5:], 4))
	reasonLen := int(bo.Uint(c.bo, b[9:], 2))
	if len(b) < 11+reasonLen {
		return f, 0, ErrTruncated
	}
	f.Reason = b[11 : 11+reasonLen]
	return f, 11 + reasonLen, nil
}

const windowUpdateFrameLen = 13 // type + 4 stream id + 8 offset

// GenWindowUpdateFrame writes a WINDOW_UPDATE frame. Stream id zero
// addresses the connection-level window.
func (c *Codec) GenWindowUpdateFrame(b []byte, streamID uint32, offset uint64) (int, error) {
	if len(b) < windowUpdateFrameLen {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FrameWindowUpdate)
	bo.PutUint(c.bo, b[1:], uint64(streamID), 4)
	bo.PutUint(c.bo, b[5:], offset, 8)
	return windowUpdateFrameLen, nil
}

// ParseWindowUpdateFrame decodes a WINDOW_UPDATE frame.
func (c *Codec) ParseWindowUpdateFrame(b []byte) (WindowUpdateFrame, int, error) {
	var f WindowUpdateFrame
	if len(b) < windowUpdateFrameLen {
		return f, 0, ErrTruncated
	}
	if b[0] != byte(FrameWindowUpdate) {
		return f, 0, ErrInvalidEncoding
	}
	f.StreamID = uint32(bo.Uint(c.bo, b[1:], 4))
	f.Offset = bo.Uint(c.bo, b[5:], 8)
	return f, windowUpdateFrameLen, nil
}

const blockedFrameLen = 5 // type + 4 stream id

// GenBlockedFrame writes a BLOCKED frame. Stream id zero reports the
// connection-level window as the blocker.
func (c *Codec) GenBlockedFrame(b []byte, streamID uint32) (int, error) {
	if len(b) < blockedFrameLen {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FrameBlocked)
	bo.PutUint(c.bo, b[1:], uint64(streamID), 4)
	return blockedFrameLen, nil
}

// ParseBlockedFrame decodes a BLOCKED frame.
func (c *Codec) ParseBlockedFrame(b []byte) (BlockedFrame, int, error) {
	var f BlockedFrame
	if len(b) < blockedFrameLen {
		return f, 0, ErrTruncated
	}
	if b[0] != byte(FrameBlocked) {
		return f, 0, ErrInvalidEncoding
	}
	f.StreamID = uint32(bo.Uint(c.bo, b[1:], 4))
	return f, blockedFrameLen, nil
}

func validPacknumLen(n int) bool {
	return n == 1 || n == 2 || n == 4 || n == 6
}

// GenStopWaitingFrame writes a STOP_WAITING frame. The least-unacked
// value is a delta below the enclosing packet's number and uses that
// packet's number length.
func (c *Codec) GenStopWaitingFrame(b []byte, packnumLen int, leastUnackedDelta uint64) (int, error) {
	if !validPacknumLen(packnumLen) || leastUnackedDelta >= uint64(1)<<uint(8*packnumLen) {
		return 0, ErrInvalidArgument
	}
	if len(b) < 1+packnumLen {
		return 0, ErrInsufficientSpace
	}
	b[0] = byte(FrameStopWaiting)
	bo.PutUint(c.bo, b[1:], leastUnackedDelta, packnumLen)
	return 1 + packnumLen, nil
}

// ParseStopWaitingFrame decodes a STOP_WAITING frame. The caller supplies
// the enclosing packet's number length.
func (c *Codec) ParseStopWaitingFrame(b []byte, packnumLen int) (uint64, int, error) {
	if !validPacknumLen(packnumLen) {
		return 0, 0, ErrInvalidArgument
	}
	if len(b) < 1+packnumLen {
		return 0, 0, ErrTruncated
	}
	if b[0] != byte(FrameStopWaiting) {
		return 0, 0, ErrInvalidEncoding
	}
	return bo.Uint(c.bo, b[1:], packnumLen), 1 + packnumLen, nil
}
