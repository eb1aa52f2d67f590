// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

// ElideResetStreamFrames removes STREAM frames belonging to streams whose
// reset has been sent, compacting the payload in place and discharging the
// unacked count of every record left empty. RST_STREAM frames are
// preserved: a reset stream still needs its reset delivered.
//
// exceptStreamID names one stream whose frames are kept regardless; zero,
// which is never a data stream, means no exception.
//
// The relative order of surviving frames is preserved byte-for-byte, as if
// the elided frames had never been appended. The regen prefix is not
// touched: STREAM frames never live there. The operation is idempotent.
func (p *PacketOut) ElideResetStreamFrames(exceptStreamID uint32) {
	adj := 0
	src := 0 // payload before src (pre-elision offsets) is already compacted
	kept := p.recs[:0]
	for i := range p.recs {
		r := p.recs[i]
		if r.FrameTypes.Has(FrameStream) {
			r.Off -= adj
			if r.Stream.ResetSent() && (exceptStreamID == 0 || r.Stream.ID != exceptStreamID) {
				if adj > 0 {
					copy(p.buf[src-adj:], p.buf[src:r.Off+adj])
				}
				adj += r.Len
				src = r.Off + adj
				r.FrameTypes.Clear(FrameStream)
				r.Off, r.Len = 0, 0
			}
		}
		if r.FrameTypes.Empty() {
			r.Stream.Acked()
			continue
		}
		kept = append(kept, r)
	}
	clear(p.recs[len(kept):])
	p.recs = kept

	// The stream-frame bits are re-derived from the surviving records;
	// frames of other kinds were not touched.
	p.types.Clear(FrameStream)
	p.types.Clear(FrameRstStream)
	for i := range p.recs {
		p.types |= p.recs[i].FrameTypes
	}
	if adj > 0 {
		copy(p.buf[src-adj:], p.buf[src:p.dataSz])
		p.dataSz -= adj
		clear(p.buf[p.dataSz : p.dataSz+adj])
	}
}
