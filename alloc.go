// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

// Mem pools packet-out buffers for one connection. Like everything else
// in this package it is single-threaded; each connection task owns its
// own Mem.
type Mem struct {
	packets []*PacketOut
	limit   int64
	used    int64
}

// MemOption configures a Mem.
type MemOption func(*Mem)

// WithMemLimit bounds the total payload bytes the allocator may hold,
// pooled and outstanding combined. Exhaustion surfaces as ErrOutOfMemory.
// Zero means unbounded.
func WithMemLimit(n int64) MemOption {
	return func(m *Mem) { m.limit = n }
}

// NewMem returns an empty allocator.
func NewMem(opts ...MemOption) *Mem {
	m := &Mem{}
	for _, fn := range opts {
		fn(m)
	}
	return m
}

// GetPacketOut returns a zeroed packet with the given payload capacity,
// reusing a pooled buffer when one is large enough. capacity zero or
// negative selects MaxPayloadSize; larger than MaxPayloadSize is an
// invalid argument.
func (m *Mem) GetPacketOut(capacity int) (*PacketOut, error) {
	if capacity <= 0 {
		capacity = MaxPayloadSize
	}
	if capacity > MaxPayloadSize {
		return nil, ErrInvalidArgument
	}
	for i := len(m.packets) - 1; i >= 0; i-- {
		p := m.packets[i]
		if cap(p.buf) >= capacity {
			m.packets = append(m.packets[:i], m.packets[i+1:]...)
			p.buf = p.buf[:capacity]
			return p, nil
		}
	}
	if m.limit > 0 && m.used+int64(capacity) > m.limit {
		return nil, ErrOutOfMemory
	}
	m.used += int64(capacity)
	return &PacketOut{buf: make([]byte, capacity)}, nil
}

// PutPacketOut destroys a packet: every remaining stream record is
// discharged from its stream's unacked count and the buffer returns to
// the pool zeroed.
func (m *Mem) PutPacketOut(p *PacketOut) {
	for i := range p.recs {
		p.recs[i].Stream.Acked()
	}
	p.reset()
	m.packets = append(m.packets, p)
}

// MemUsed returns the payload bytes retained by this allocator, pooled
// and outstanding combined.
func (m *Mem) MemUsed() int64 { return m.used }
