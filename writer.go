// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/http2/hpack"
)

// HTTP/2 frame types and flags used on the HEADERS stream.
const (
	h2FrameHeaderLen = 9

	h2TypeHeaders      = 0x1
	h2TypePriority     = 0x2
	h2TypeSettings     = 0x4
	h2TypePushPromise  = 0x5
	h2TypeContinuation = 0x9

	h2FlagEndStream  = 0x1
	h2FlagEndHeaders = 0x4
	h2FlagPadded     = 0x8
	h2FlagPriority   = 0x20
)

// HTTP/2 setting identifiers for WriteSettings.
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// Setting is one SETTINGS frame entry.
type Setting struct {
	ID    uint16
	Value uint32
}

// WriteFunc pushes bytes onto the underlying HEADERS stream. A short
// count with ErrWouldBlock or ErrMore routes the remainder into the
// writer's leftover buffer; any other error is surfaced.
type WriteFunc func(p []byte) (int, error)

// FrameWriter serializes HTTP request and response metadata onto the
// dedicated HEADERS stream. The HPACK encoder's dynamic table persists
// across writes, so frames must reach the wire in call order; the
// leftover buffer preserves that order under backpressure.
//
// Each write is atomic from the caller's perspective: the whole frame
// sequence is committed (to the stream or to leftovers) or an error is
// returned with leftovers unchanged. The one exception is an HPACK
// encoder failure, which is surfaced directly.
type FrameWriter struct {
	write WriteFunc

	maxFrameSize      uint32
	maxHeaderListSize uint32
	isServer          bool

	henc *hpack.Encoder
	hbuf bytes.Buffer // HPACK encoder output

	obuf      []byte // frame assembly scratch, reused across writes
	leftovers bytes.Buffer
}

// NewFrameWriter returns a writer pushing frames through write.
func NewFrameWriter(write WriteFunc, opts ...Option) *FrameWriter {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	w := &FrameWriter{
		write:             write,
		maxFrameSize:      o.MaxFrameSize,
		maxHeaderListSize: o.MaxHeaderListSize,
		isServer:          o.IsServer,
	}
	w.henc = hpack.NewEncoder(&w.hbuf)
	if o.HeaderTableSize != defaultOptions.HeaderTableSize {
		w.henc.SetMaxDynamicTableSize(o.HeaderTableSize)
	}
	return w
}

// SetMaxHeaderListSize updates the peer-advertised ceiling. Takes effect
// on the next write.
func (w *FrameWriter) SetMaxHeaderListSize(n uint32) { w.maxHeaderListSize = n }

// HaveLeftovers reports whether buffered bytes await Flush.
func (w *FrameWriter) HaveLeftovers() bool { return w.leftovers.Len() > 0 }

// MemUsed returns the bytes retained by the writer's internal buffers.
func (w *FrameWriter) MemUsed() int {
	return cap(w.obuf) + w.hbuf.Cap() + w.leftovers.Cap()
}

// Flush drains the leftover buffer to the underlying stream. It returns
// nil once the buffer is empty or as soon as the stream pushes back; the
// writer reports leftovers until fully drained.
func (w *FrameWriter) Flush() error {
	for w.leftovers.Len() > 0 {
		n, err := w.write(w.leftovers.Bytes())
		if n > 0 {
			w.leftovers.Next(n)
		}
		if err == ErrWouldBlock || err == ErrMore {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			// Guard against broken writers that violate the contract by
			// returning (0, nil); without this Flush can spin indefinitely.
			return io.ErrShortWrite
		}
	}
	return nil
}

// push commits one assembled frame sequence. With leftovers pending, the
// bytes queue behind them to keep wire order; otherwise they are written
// through and any short remainder is buffered.
func (w *FrameWriter) push(b []byte) error {
	if w.leftovers.Len() > 0 {
		w.leftovers.Write(b)
		return nil
	}
	n, err := w.write(b)
	if n < 0 {
		n = 0
	}
	if n >= len(b) {
		return nil
	}
	if err == nil || err == ErrWouldBlock || err == ErrMore {
		w.leftovers.Write(b[n:])
		return nil
	}
	return err
}

func appendFrameHeader(b []byte, length uint32, typ, flags byte, streamID uint32) []byte {
	return append(b,
		byte(length>>16), byte(length>>8), byte(length),
		typ, flags,
		byte(streamID>>24)&0x7f, byte(streamID>>16), byte(streamID>>8), byte(streamID))
}

// appendHeaderBlock lays out a header block as one firstType frame chained
// with CONTINUATION frames, each payload at most maxFrameSize. prefix is
// carried inside the first frame's payload ahead of the block fragment.
// END_HEADERS lands on exactly the last frame.
func (w *FrameWriter) appendHeaderBlock(out []byte, firstType, firstFlags byte, prefix []byte, streamID uint32, block []byte) ([]byte, error) {
	budget := int(w.maxFrameSize) - len(prefix)
	if budget <= 0 {
		return nil, ErrInsufficientSpace
	}
	n := len(block)
	if n > budget {
		n = budget
	} else {
		firstFlags |= h2FlagEndHeaders
	}
	out = appendFrameHeader(out, uint32(n+len(prefix)), firstType, firstFlags, streamID)
	out = append(out, prefix...)
	out = append(out, block[:n]...)
	rest := block[n:]
	for len(rest) > 0 {
		n = len(rest)
		if n > int(w.maxFrameSize) {
			n = int(w.maxFrameSize)
		}
		var flags byte
		if n == len(rest) {
			flags = h2FlagEndHeaders
		}
		out = appendFrameHeader(out, uint32(n), h2TypeContinuation, flags, streamID)
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}
	return out, nil
}

// checkHeaderListSize enforces the peer ceiling on the uncompressed
// header list, counted as name + value + 32 octets per field.
func (w *FrameWriter) checkHeaderListSize(lists ...[]hpack.HeaderField) error {
	if w.maxHeaderListSize == 0 {
		return nil
	}
	var sum uint64
	for _, headers := range lists {
		for _, hf := range headers {
			sum += uint64(len(hf.Name)) + uint64(len(hf.Value)) + 32
		}
	}
	if sum > uint64(w.maxHeaderListSize) {
		return ErrHeaderListTooLarge
	}
	return nil
}

// encodeBlock runs the header fields through the shared HPACK encoder.
// The returned slice is valid until the next encode.
func (w *FrameWriter) encodeBlock(lists ...[]hpack.HeaderField) ([]byte, error) {
	w.hbuf.Reset()
	for _, headers := range lists {
		for _, hf := range headers {
			if err := w.henc.WriteField(hf); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEncoderFailure, err)
			}
		}
	}
	return w.hbuf.Bytes(), nil
}

// WriteHeaders emits the header list for streamID as a HEADERS frame
// chained with CONTINUATION frames as needed. endStream sets END_STREAM
// on the HEADERS frame. weight zero omits priority information; weights
// 1 through 256 attach a priority block depending on stream zero.
func (w *FrameWriter) WriteHeaders(streamID uint32, headers []hpack.HeaderField, endStream bool, weight uint16) error {
	if weight > 256 {
		return ErrInvalidArgument
	}
	if err := w.checkHeaderListSize(headers); err != nil {
		return err
	}
	block, err := w.encodeBlock(headers)
	if err != nil {
		return err
	}

	var flags byte
	var prefix []byte
	if endStream {
		flags |= h2FlagEndStream
	}
	var prio [5]byte
	if weight != 0 {
		flags |= h2FlagPriority
		prio[4] = byte(weight - 1)
		prefix = prio[:]
	}
	out, err := w.appendHeaderBlock(w.obuf[:0], h2TypeHeaders, flags, prefix, streamID, block)
	if err != nil {
		return err
	}
	w.obuf = out[:0]
	return w.push(out)
}

// WriteSettings emits one SETTINGS frame on stream zero. At least one
// entry is required, and the payload must fit the peer max frame size:
// SETTINGS frames are not chainable.
func (w *FrameWriter) WriteSettings(settings []Setting) error {
	if len(settings) == 0 {
		return ErrInvalidArgument
	}
	payload := uint32(len(settings)) * 6
	if payload > w.maxFrameSize {
		return ErrInsufficientSpace
	}
	out := appendFrameHeader(w.obuf[:0], payload, h2TypeSettings, 0, 0)
	for _, s := range settings {
		out = append(out,
			byte(s.ID>>8), byte(s.ID),
			byte(s.Value>>24), byte(s.Value>>16), byte(s.Value>>8), byte(s.Value))
	}
	w.obuf = out[:0]
	return w.push(out)
}

// WritePriority emits a PRIORITY frame for streamID depending on
// depStreamID. priority is the stream weight, 1 through 256; exclusive
// sets the exclusive-dependency bit.
func (w *FrameWriter) WritePriority(streamID uint32, exclusive bool, depStreamID uint32, priority uint16) error {
	if priority == 0 || priority > 256 {
		return ErrInvalidArgument
	}
	dep := depStreamID & 0x7fffffff
	if exclusive {
		dep |= 1 << 31
	}
	out := appendFrameHeader(w.obuf[:0], 5, h2TypePriority, 0, streamID)
	out = append(out, byte(dep>>24), byte(dep>>16), byte(dep>>8), byte(dep), byte(priority-1))
	w.obuf = out[:0]
	return w.push(out)
}

// WritePromise emits a PUSH_PROMISE frame on streamID announcing
// promisedStreamID, chained with CONTINUATION frames as needed. The
// promised request is GET over https for path on host, plus the supplied
// headers. Server-only; promised stream identifiers are server-initiated
// and therefore even.
func (w *FrameWriter) WritePromise(streamID, promisedStreamID uint32, path, host string, headers []hpack.HeaderField) error {
	if !w.isServer || promisedStreamID&1 != 0 {
		return ErrInvalidArgument
	}
	pseudo := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: path},
		{Name: ":authority", Value: host},
	}
	if err := w.checkHeaderListSize(pseudo, headers); err != nil {
		return err
	}
	block, err := w.encodeBlock(pseudo, headers)
	if err != nil {
		return err
	}
	prefix := [4]byte{
		byte(promisedStreamID>>24) & 0x7f, byte(promisedStreamID >> 16),
		byte(promisedStreamID >> 8), byte(promisedStreamID),
	}
	out, err := w.appendHeaderBlock(w.obuf[:0], h2TypePushPromise, 0, prefix[:], streamID, block)
	if err != nil {
		return err
	}
	w.obuf = out[:0]
	return w.push(out)
}
