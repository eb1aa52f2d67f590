// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

import (
	"encoding/binary"
)

// Version identifies a wire protocol version. Only versions listed in the
// dispatch below are serializable; everything else fails closed.
//
// Single source of truth — version → field byte order:
//   - Q035 → LittleEndian
//   - Q039 → BigEndian (network byte order, Q039 onward)
//
// The frame layouts themselves are shared across both versions; the byte
// order of multi-byte integer fields is the versioned axis.
type Version uint8

const (
	Q035 Version = 35
	Q039 Version = 39
)

func (v Version) String() string {
	switch v {
	case Q035:
		return "Q035"
	case Q039:
		return "Q039"
	default:
		return "Q???"
	}
}

// Codec generates and parses frames under one protocol version. Version
// dispatch is resolved here, once, and stays out of the per-frame hot path.
type Codec struct {
	ver Version
	bo  binary.ByteOrder
}

// ForVersion returns the frame codec for v, or ErrUnsupportedVersion for
// versions this package does not speak.
func ForVersion(v Version) (*Codec, error) {
	switch v {
	case Q035:
		return &Codec{ver: v, bo: binary.LittleEndian}, nil
	case Q039:
		return &Codec{ver: v, bo: binary.BigEndian}, nil
	default:
		return nil, ErrUnsupportedVersion
	}
}

// Version returns the version this codec serializes.
func (c *Codec) Version() Version { return c.ver }
