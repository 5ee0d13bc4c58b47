// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gzstream

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// verifyGzip confirms compressed decodes, via the standard library's own
// gzip reader, back to want.
func verifyGzip(t *testing.T, compressed []byte, want []byte) {
	t.Helper()

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("io.ReadAll: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("gzip.Read (-want, +got):\n%s", diff)
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		h    Header
		opts EncoderOpts
		data []byte
	}{
		{
			name: "empty payload",
			h:    Header{OS: OSUnknown},
			data: []byte{},
		},
		{
			name: "small payload with name",
			h:    Header{OS: OSUnix, Name: strPtr("hello.txt")},
			data: []byte("hello, gzstream"),
		},
		{
			name: "larger payload spanning multiple deflate blocks",
			h:    Header{OS: OSUnix},
			opts: EncoderOpts{Level: flate.BestCompression},
			data: bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 5000),
		},
		{
			name: "header CRC emitted",
			h:    Header{OS: OSUnix, Comment: strPtr("c")},
			opts: EncoderOpts{EmitHeaderCRC: true},
			data: []byte("payload"),
		},
		{
			name: "mtime set",
			h:    Header{OS: OSUnix, MTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
			data: []byte("with a timestamp"),
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			enc, err := NewEncoder(bytes.NewReader(tc.data), tc.h, tc.opts)
			if diff := cmp.Diff(nil, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("NewEncoder (-want, +got):\n%s", diff)
			}

			compressed, err := io.ReadAll(enc)
			if diff := cmp.Diff(nil, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("ReadAll (-want, +got):\n%s", diff)
			}

			verifyGzip(t, compressed, tc.data)

			// The trailer's ISIZE is the uncompressed length mod 2^32.
			trailer := compressed[len(compressed)-8:]
			gotSize := uint32(trailer[4]) | uint32(trailer[5])<<8 | uint32(trailer[6])<<16 | uint32(trailer[7])<<24
			if diff := cmp.Diff(uint32(len(tc.data)), gotSize); diff != "" {
				t.Errorf("ISIZE (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestEncoderRejectsZeroByteInName(t *testing.T) {
	t.Parallel()

	_, err := NewEncoder(bytes.NewReader(nil), Header{Name: strPtr("a\x00b")}, EncoderOpts{})
	if diff := cmp.Diff(true, errIsHeader(err)); diff != "" {
		t.Errorf("NewEncoder error (-want, +got):\n%s", diff)
	}
}

func TestEncoderRejectsZeroByteInComment(t *testing.T) {
	t.Parallel()

	_, err := NewEncoder(bytes.NewReader(nil), Header{Comment: strPtr("a\x00b")}, EncoderOpts{})
	if diff := cmp.Diff(true, errIsHeader(err)); diff != "" {
		t.Errorf("NewEncoder error (-want, +got):\n%s", diff)
	}
}

func TestEncoderPropagatesWouldBlockWithoutLatching(t *testing.T) {
	t.Parallel()

	src := &faultSource{data: []byte("retry me please"), chunk: 4, blockEvery: 2}
	enc, err := NewEncoder(src, Header{OS: OSUnknown}, EncoderOpts{})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	var out bytes.Buffer
	buf := make([]byte, 8)
	for {
		n, err := enc.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if !isWouldBlock(err) {
				t.Fatalf("Read: unexpected error: %v", err)
			}
			continue
		}
	}

	verifyGzip(t, out.Bytes(), src.data)
}

func TestEncoderInnerAndIntoInner(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader([]byte("abc"))
	enc, err := NewEncoder(src, Header{OS: OSUnknown}, EncoderOpts{})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	if got := enc.Inner(); got != io.Reader(src) {
		t.Errorf("Inner = %v, want %v", got, src)
	}
	if got := enc.IntoInner(); got != io.Reader(src) {
		t.Errorf("IntoInner = %v, want %v", got, src)
	}
}
