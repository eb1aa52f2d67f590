// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quicframe

import (
	"bytes"
	"errors"
	"testing"
)

var testVersions = []Version{Q035, Q039}

func mustCodec(t *testing.T, v Version) *Codec {
	t.Helper()
	c, err := ForVersion(v)
	if err != nil {
		t.Fatalf("ForVersion(%v): %v", v, err)
	}
	return c
}

// contentReader yields fixed stream contents, reporting fin when the last
// byte is consumed.
func contentReader(data string, fin bool) ReadFunc {
	return func(p []byte) (int, bool) {
		n := copy(p, data)
		return n, fin && n == len(data)
	}
}

func TestForVersionFailsClosed(t *testing.T) {
	for _, v := range []Version{0, 36, 43, 255} {
		if _, err := ForVersion(v); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("ForVersion(%d): got %v, want ErrUnsupportedVersion", v, err)
		}
	}
	for _, v := range testVersions {
		c := mustCodec(t, v)
		if c.Version() != v {
			t.Errorf("Version() = %v, want %v", c.Version(), v)
		}
	}
}

func TestStreamFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		streamID uint32
		offset   uint64
		fin      bool
		data     string
	}{
		{"small id no offset", 1, 0, false, "hello"},
		{"offset fits two bytes", 0x41, 123, false, "AAAAAAAAAA"},
		{"wide id", 0x01020304, 0, false, "x"},
		{"wide offset", 5, 0x0102030405, false, "payload"},
		{"fin with data", 9, 77, true, "last bytes"},
		{"fin empty", 9, 1024, true, ""},
	}
	for _, v := range testVersions {
		c := mustCodec(t, v)
		for _, tt := range tests {
			t.Run(v.String()+"/"+tt.name, func(t *testing.T) {
				buf := make([]byte, 256)
				n, err := c.GenStreamFrame(buf, tt.streamID, tt.offset, tt.fin,
					len(tt.data), contentReader(tt.data, tt.fin))
				if err != nil {
					t.Fatalf("gen: %v", err)
				}
				f, consumed, err := c.ParseStreamFrame(buf[:n])
				if err != nil {
					t.Fatalf("parse: %v", err)
				}
				if consumed != n {
					t.Errorf("consumed %d, want %d", consumed, n)
				}
				if f.StreamID != tt.streamID || f.Offset != tt.offset || f.Fin != tt.fin {
					t.Errorf("got %+v", f)
				}
				if string(f.Data) != tt.data {
					t.Errorf("data %q, want %q", f.Data, tt.data)
				}
			})
		}
	}
}

func TestStreamFrameGoldenQ035(t *testing.T) {
	c := mustCodec(t, Q035)
	buf := make([]byte, 64)
	n, err := c.GenStreamFrame(buf, 'A', 123, false, 10, contentReader("AAAAAAAAAA", false))
	if err != nil {
		t.Fatal(err)
	}
	// 1FDOOOSS: data length present, 2-byte offset, 1-byte stream id.
	want := append([]byte{0xa4, 0x41, 0x7b, 0x00, 0x0a, 0x00}, []byte("AAAAAAAAAA")...)
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("got  % x\nwant % x", buf[:n], want)
	}
}

func TestStreamFrameMinimalWidths(t *testing.T) {
	c := mustCodec(t, Q039)
	tests := []struct {
		streamID uint32
		offset   uint64
		hdrLen   int
	}{
		{1, 0, 1 + 1 + 0 + 2},
		{0x100, 0, 1 + 2 + 0 + 2},
		{1, 1, 1 + 1 + 2 + 2},       // minimum present offset width is 2
		{1, 0x10000, 1 + 1 + 3 + 2}, // 3-byte offset
		{0xffffffff, 1 << 56, 1 + 4 + 8 + 2},
	}
	for _, tt := range tests {
		buf := make([]byte, 64)
		n, err := c.GenStreamFrame(buf, tt.streamID, tt.offset, false, 1, contentReader("z", false))
		if err != nil {
			t.Fatalf("gen(%d, %d): %v", tt.streamID, tt.offset, err)
		}
		if n != tt.hdrLen+1 {
			t.Errorf("gen(%d, %d): frame len %d, want %d", tt.streamID, tt.offset, n, tt.hdrLen+1)
		}
	}
}

func TestStreamFrameBoundedByBuffer(t *testing.T) {
	c := mustCodec(t, Q039)
	buf := make([]byte, 16)
	n, err := c.GenStreamFrame(buf, 1, 0, false, 1000, contentReader(string(make([]byte, 1000)), false))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Errorf("frame len %d, want full buffer %d", n, len(buf))
	}
	f, _, err := c.ParseStreamFrame(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Data) != len(buf)-4 { // type + sid + data length
		t.Errorf("data len %d", len(f.Data))
	}
}

func TestStreamFrameInsufficientSpace(t *testing.T) {
	c := mustCodec(t, Q039)
	// Header is 4 bytes here; one data byte must also fit.
	if _, err := c.GenStreamFrame(make([]byte, 4), 1, 0, false, 5, contentReader("abcde", false)); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("got %v, want ErrInsufficientSpace", err)
	}
	// Fin-only frames need no data byte.
	if _, err := c.GenStreamFrame(make([]byte, 4), 1, 0, true, 0, nil); err != nil {
		t.Errorf("fin-only: %v", err)
	}
}

func TestStreamFrameParseErrors(t *testing.T) {
	c := mustCodec(t, Q039)
	if _, _, err := c.ParseStreamFrame(nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("empty: %v", err)
	}
	if _, _, err := c.ParseStreamFrame([]byte{0x01}); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("non-stream type byte: %v", err)
	}
	// Header promises 2-byte offset that is not there.
	if _, _, err := c.ParseStreamFrame([]byte{0xa4, 0x01}); !errors.Is(err, ErrTruncated) {
		t.Errorf("short header: %v", err)
	}
	// Data length promises more than the buffer holds.
	if _, _, err := c.ParseStreamFrame([]byte{0x80 | 0x20, 0x01, 0x00, 0x09, 'x'}); !errors.Is(err, ErrTruncated) {
		t.Errorf("short data: %v", err)
	}
}

func TestStreamFrameWithoutDataLength(t *testing.T) {
	c := mustCodec(t, Q039)
	// Hand-built frame: no data-length field, data runs to the end.
	b := append([]byte{0x80, 0x07}, []byte("tail data")...)
	f, consumed, err := c.ParseStreamFrame(b)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(b) || f.StreamID != 7 || string(f.Data) != "tail data" {
		t.Errorf("got %+v consumed %d", f, consumed)
	}
}

func TestRstFrameRoundTrip(t *testing.T) {
	for _, v := range testVersions {
		c := mustCodec(t, v)
		buf := make([]byte, 32)
		n, err := c.GenRstFrame(buf, 0x41, 133, 7)
		if err != nil {
			t.Fatal(err)
		}
		if n != 17 {
			t.Errorf("%v: frame len %d, want 17", v, n)
		}
		f, consumed, err := c.ParseRstFrame(buf[:n])
		if err != nil {
			t.Fatal(err)
		}
		if consumed != 17 || f.StreamID != 0x41 || f.Offset != 133 || f.ErrorCode != 7 {
			t.Errorf("%v: got %+v", v, f)
		}
	}
}

func TestRstFrameGolden(t *testing.T) {
	buf := make([]byte, 32)
	c := mustCodec(t, Q039)
	n, _ := c.GenRstFrame(buf, 'A', 133, 0x85)
	want := []byte{
		0x01,
		0x00, 0x00, 0x00, 0x41,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x85,
		0x00, 0x00, 0x00, 0x85,
	}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("Q039:\ngot  % x\nwant % x", buf[:n], want)
	}

	c = mustCodec(t, Q035)
	n, _ = c.GenRstFrame(buf, 'A', 133, 0x85)
	want = []byte{
		0x01,
		0x41, 0x00, 0x00, 0x00,
		0x85, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x85, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("Q035:\ngot  % x\nwant % x", buf[:n], want)
	}
}

func TestAckFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ai   AckInfo
	}{
		{"single range", AckInfo{
			LargestAcked: 10, Delay: 1000,
			Ranges: []AckRange{{High: 10, Low: 5}},
		}},
		{"from zero", AckInfo{
			LargestAcked: 3,
			Ranges:       []AckRange{{High: 3, Low: 0}},
		}},
		{"several ranges", AckInfo{
			LargestAcked: 0x123456, Delay: 0xffff,
			Ranges: []AckRange{
				{High: 0x123456, Low: 0x123400},
				{High: 0x1233f0, Low: 0x1233e0},
				{High: 0x120000, Low: 0x11fff0},
			},
		}},
		{"gap wider than 255", AckInfo{
			LargestAcked: 100000, Delay: 12,
			Ranges: []AckRange{
				{High: 100000, Low: 99990},
				{High: 90000, Low: 89999},
			},
		}},
		{"wide packet numbers", AckInfo{
			LargestAcked: 1 << 40,
			Ranges:       []AckRange{{High: 1 << 40, Low: 1<<40 - 1000}},
		}},
	}
	for _, v := range testVersions {
		c := mustCodec(t, v)
		for _, tt := range tests {
			t.Run(v.String()+"/"+tt.name, func(t *testing.T) {
				buf := make([]byte, 256)
				n, err := c.GenAckFrame(buf, &tt.ai)
				if err != nil {
					t.Fatalf("gen: %v", err)
				}
				var got AckInfo
				consumed, err := c.ParseAckFrame(buf[:n], &got)
				if err != nil {
					t.Fatalf("parse: %v", err)
				}
				if consumed != n {
					t.Errorf("consumed %d, want %d", consumed, n)
				}
				if got.LargestAcked != tt.ai.LargestAcked || got.Delay != tt.ai.Delay {
					t.Errorf("got %+v", got)
				}
				if len(got.Ranges) != len(tt.ai.Ranges) {
					t.Fatalf("ranges %v, want %v", got.Ranges, tt.ai.Ranges)
				}
				for i := range got.Ranges {
					if got.Ranges[i] != tt.ai.Ranges[i] {
						t.Errorf("range %d: %v, want %v", i, got.Ranges[i], tt.ai.Ranges[i])
					}
				}
			})
		}
	}
}

func TestAckFrameParseReusesRanges(t *testing.T) {
	c := mustCodec(t, Q039)
	buf := make([]byte, 64)
	ai := AckInfo{LargestAcked: 9, Ranges: []AckRange{{High: 9, Low: 1}}}
	n, err := c.GenAckFrame(buf, &ai)
	if err != nil {
		t.Fatal(err)
	}
	got := AckInfo{Ranges: make([]AckRange, 0, 8)}
	backing := &got.Ranges[:1][0]
	for i := 0; i < 3; i++ {
		if _, err := c.ParseAckFrame(buf[:n], &got); err != nil {
			t.Fatal(err)
		}
	}
	if &got.Ranges[:1][0] != backing {
		t.Error("parse reallocated the ranges backing array")
	}
}

func TestAckFrameInvalid(t *testing.T) {
	c := mustCodec(t, Q039)
	buf := make([]byte, 64)
	bad := []AckInfo{
		{},
		{LargestAcked: 5, Ranges: []AckRange{{High: 4, Low: 0}}},            // largest mismatch
		{LargestAcked: 5, Ranges: []AckRange{{High: 5, Low: 6}}},            // inverted
		{LargestAcked: 9, Ranges: []AckRange{{High: 9, Low: 5}, {High: 4, Low: 0}}}, // touching
	}
	for i, ai := range bad {
		if _, err := c.GenAckFrame(buf, &ai); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("case %d: got %v, want ErrInvalidArgument", i, err)
		}
	}
	if _, err := c.GenAckFrame(make([]byte, 3), &AckInfo{LargestAcked: 1, Ranges: []AckRange{{High: 1, Low: 0}}}); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("tiny buffer: got %v, want ErrInsufficientSpace", err)
	}
	var got AckInfo
	if _, err := c.ParseAckFrame([]byte{0x01}, &got); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("bad type byte: %v", err)
	}
	if _, err := c.ParseAckFrame([]byte{0x40, 0x01}, &got); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated: %v", err)
	}
}

func TestStopWaitingRoundTrip(t *testing.T) {
	for _, v := range testVersions {
		c := mustCodec(t, v)
		for _, packnumLen := range []int{1, 2, 4, 6} {
			delta := uint64(1)<<uint(8*packnumLen) - 2
			buf := make([]byte, 16)
			n, err := c.GenStopWaitingFrame(buf, packnumLen, delta)
			if err != nil {
				t.Fatalf("%v len %d: %v", v, packnumLen, err)
			}
			if n != 1+packnumLen {
				t.Errorf("frame len %d", n)
			}
			got, consumed, err := c.ParseStopWaitingFrame(buf[:n], packnumLen)
			if err != nil || consumed != n || got != delta {
				t.Errorf("%v len %d: got %d (%d, %v)", v, packnumLen, got, consumed, err)
			}
		}
	}
	c := mustCodec(t, Q039)
	if _, err := c.GenStopWaitingFrame(make([]byte, 16), 3, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad packnum len: %v", err)
	}
	if _, err := c.GenStopWaitingFrame(make([]byte, 16), 1, 256); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("delta overflow: %v", err)
	}
}

func TestSmallFramesRoundTrip(t *testing.T) {
	for _, v := range testVersions {
		c := mustCodec(t, v)
		buf := make([]byte, 128)

		n, err := c.GenConnCloseFrame(buf, 0x10, []byte("going away"))
		if err != nil {
			t.Fatal(err)
		}
		cc, consumed, err := c.ParseConnCloseFrame(buf[:n])
		if err != nil || consumed != n || cc.ErrorCode != 0x10 || string(cc.Reason) != "going away" {
			t.Errorf("%v conn close: %+v (%d, %v)", v, cc, consumed, err)
		}

		n, err = c.GenGoawayFrame(buf, 9, 101, nil)
		if err != nil {
			t.Fatal(err)
		}
		ga, consumed, err := c.ParseGoawayFrame(buf[:n])
		if err != nil || consumed != n || ga.ErrorCode != 9 || ga.LastStreamID != 101 || len(ga.Reason) != 0 {
			t.Errorf("%v goaway: %+v (%d, %v)", v, ga, consumed, err)
		}

		n, err = c.GenWindowUpdateFrame(buf, 3, 1<<40)
		if err != nil {
			t.Fatal(err)
		}
		wu, consumed, err := c.ParseWindowUpdateFrame(buf[:n])
		if err != nil || consumed != n || wu.StreamID != 3 || wu.Offset != 1<<40 {
			t.Errorf("%v window update: %+v (%d, %v)", v, wu, consumed, err)
		}

		n, err = c.GenBlockedFrame(buf, 5)
		if err != nil {
			t.Fatal(err)
		}
		bl, consumed, err := c.ParseBlockedFrame(buf[:n])
		if err != nil || consumed != n || bl.StreamID != 5 {
			t.Errorf("%v blocked: %+v (%d, %v)", v, bl, consumed, err)
		}

		n, err = c.GenPingFrame(buf)
		if err != nil || n != 1 || buf[0] != 0x07 {
			t.Errorf("%v ping: % x (%d, %v)", v, buf[:n], n, err)
		}

		n, err = c.GenPaddingFrame(buf, 7)
		if err != nil || n != 7 {
			t.Errorf("%v padding: %d, %v", v, n, err)
		}
	}
}

func TestGenErrorsOnTinyBuffers(t *testing.T) {
	c := mustCodec(t, Q035)
	small := make([]byte, 2)
	if _, err := c.GenRstFrame(small, 1, 0, 0); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("rst: %v", err)
	}
	if _, err := c.GenConnCloseFrame(small, 0, nil); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("conn close: %v", err)
	}
	if _, err := c.GenGoawayFrame(small, 0, 0, nil); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("goaway: %v", err)
	}
	if _, err := c.GenWindowUpdateFrame(small, 0, 0); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("window update: %v", err)
	}
	if _, err := c.GenBlockedFrame(small, 0); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("blocked: %v", err)
	}
	if _, err := c.GenPingFrame(nil); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("ping: %v", err)
	}
	if _, err := c.GenPaddingFrame(small, 3); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("padding: %v", err)
	}
}

func TestFrameKindOf(t *testing.T) {
	tests := []struct {
		b    byte
		kind FrameKind
	}{
		{0x00, FramePadding},
		{0x01, FrameRstStream},
		{0x02, FrameConnClose},
		{0x03, FrameGoaway},
		{0x04, FrameWindowUpdate},
		{0x05, FrameBlocked},
		{0x06, FrameStopWaiting},
		{0x07, FramePing},
		{0x80, FrameStream},
		{0xe4, FrameStream},
		{0x40, FrameAck},
		{0x6c, FrameAck},
	}
	for _, tt := range tests {
		kind, err := FrameKindOf(tt.b)
		if err != nil || kind != tt.kind {
			t.Errorf("FrameKindOf(%#x) = %v, %v; want %v", tt.b, kind, err, tt.kind)
		}
	}
	for _, b := range []byte{0x08, 0x20, 0x3f} {
		if _, err := FrameKindOf(b); !errors.Is(err, ErrUnknownFrame) {
			t.Errorf("FrameKindOf(%#x): %v, want ErrUnknownFrame", b, err)
		}
	}
}
