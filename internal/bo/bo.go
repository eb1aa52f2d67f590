// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bo provides partial-width integer encoding in a caller-supplied
// byte order.
//
// QUIC frame fields use minimal encodings of 1 to 8 bytes whose width is
// carried in the frame type byte, so the fixed-width helpers in
// encoding/binary do not apply directly.
package bo

import "encoding/binary"

// Len returns the minimal number of bytes able to hold v, at least 1.
func Len(v uint64) int {
	n := 1
	for v > 0xff {
		v >>= 8
		n++
	}
	return n
}

// PutUint writes the low width bytes of v into b in the given byte order.
// b must have at least width bytes; width must be in [1, 8].
func PutUint(order binary.ByteOrder, b []byte, v uint64, width int) {
	if order == binary.LittleEndian {
		for i := 0; i < width; i++ {
			b[i] = byte(v >> (8 * i))
		}
		return
	}
	for i := 0; i < width; i++ {
		b[i] = byte(v >> (8 * (width - 1 - i)))
	}
}

// Uint reads a width-byte unsigned integer from b in the given byte order.
// b must have at least width bytes; width must be in [1, 8].
func Uint(order binary.ByteOrder, b []byte, width int) uint64 {
	var v uint64
	if order == binary.LittleEndian {
		for i := width - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
	for i := 0; i < width; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
