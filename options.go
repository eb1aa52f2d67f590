// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

// Options configures a FrameWriter.
type Options struct {
	// MaxFrameSize caps the payload of each HTTP frame emitted on the
	// HEADERS stream. Peer-advertised; header blocks larger than this are
	// chained across CONTINUATION frames.
	MaxFrameSize uint32

	// MaxHeaderListSize caps the uncompressed size of a header list,
	// accounted as name length + value length + 32 per field. Zero means
	// no ceiling.
	MaxHeaderListSize uint32

	// HeaderTableSize sets the HPACK dynamic table size.
	HeaderTableSize uint32

	// IsServer enables the server-only operations (PUSH_PROMISE).
	IsServer bool
}

var defaultOptions = Options{
	MaxFrameSize:    16384,
	HeaderTableSize: 4096,
}

type Option func(*Options)

func WithMaxFrameSize(n uint32) Option {
	return func(o *Options) { o.MaxFrameSize = n }
}

func WithMaxHeaderListSize(n uint32) Option {
	return func(o *Options) { o.MaxHeaderListSize = n }
}

func WithHeaderTableSize(n uint32) Option {
	return func(o *Options) { o.HeaderTableSize = n }
}

// WithServer marks the writer as the server end of the connection.
func WithServer() Option {
	return func(o *Options) { o.IsServer = true }
}
