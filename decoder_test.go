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
	"compress/gzip"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// buildMember compresses data into a single gzip member using the
// standard library's own writer, giving the Decoder tests a
// known-good, independently produced wire encoding to consume.
func buildMember(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		t.Fatalf("gzip.NewWriterLevel: %v", err)
	}
	gw.Name = name
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip Write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
	return buf.Bytes()
}

func TestDecoderRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "small", data: []byte("a short message")},
		{name: "large", data: bytes.Repeat([]byte("gzstream round trip "), 10000)},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			member := buildMember(t, "f.txt", tc.data)

			dec := NewDecoder(bytes.NewReader(member))
			got, err := io.ReadAll(dec)
			if diff := cmp.Diff(nil, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("ReadAll (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.data, got); diff != "" {
				t.Errorf("decoded bytes (-want, +got):\n%s", diff)
			}

			h, ok := dec.Header()
			if diff := cmp.Diff(true, ok); diff != "" {
				t.Fatalf("Header ok (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff("f.txt", *h.Name); diff != "" {
				t.Errorf("Header.Name (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDecoderHeaderUnsetBeforeFirstRead(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(bytes.NewReader(buildMember(t, "", []byte("x"))))
	_, ok := dec.Header()
	if diff := cmp.Diff(false, ok); diff != "" {
		t.Errorf("Header ok before Read (-want, +got):\n%s", diff)
	}
}

func TestDecoderSingleMemberStopsAtFirstMember(t *testing.T) {
	t.Parallel()

	first := buildMember(t, "", []byte("first"))
	second := buildMember(t, "", []byte("second"))
	stream := append(append([]byte{}, first...), second...)

	dec := NewDecoder(bytes.NewReader(stream))
	got, err := io.ReadAll(dec)
	if diff := cmp.Diff(nil, err, cmpopts.EquateErrors()); diff != "" {
		t.Fatalf("ReadAll (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff("first", string(got)); diff != "" {
		t.Errorf("decoded bytes (-want, +got):\n%s", diff)
	}
}

func TestMultiDecoderConcatenatesMembers(t *testing.T) {
	t.Parallel()

	parts := [][]byte{[]byte("first-"), []byte("second-"), []byte("third")}
	var stream []byte
	for _, p := range parts {
		stream = append(stream, buildMember(t, "", p)...)
	}

	dec := NewMultiDecoder(bytes.NewReader(stream))
	got, err := io.ReadAll(dec)
	if diff := cmp.Diff(nil, err, cmpopts.EquateErrors()); diff != "" {
		t.Fatalf("ReadAll (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff("first-second-third", string(got)); diff != "" {
		t.Errorf("decoded bytes (-want, +got):\n%s", diff)
	}
}

func TestDecoderCorruptTrailerCRC(t *testing.T) {
	t.Parallel()

	member := buildMember(t, "", []byte("checksum me"))
	// Flip a bit in the CRC32 field of the trailer (the 8 bytes at the
	// very end, CRC32 first).
	member[len(member)-8] ^= 0xff

	dec := NewDecoder(bytes.NewReader(member))
	_, err := io.ReadAll(dec)
	if diff := cmp.Diff(true, errors.Is(err, ErrChecksum)); diff != "" {
		t.Errorf("ReadAll error (-want, +got):\n%s", diff)
	}
}

func TestDecoderLatchesErrorAfterFirstFailure(t *testing.T) {
	t.Parallel()

	member := buildMember(t, "", []byte("checksum me"))
	member[len(member)-8] ^= 0xff

	dec := NewDecoder(bytes.NewReader(member))
	_, err := io.ReadAll(dec)
	if err == nil {
		t.Fatalf("ReadAll: want error, got nil")
	}

	n, err2 := dec.Read(make([]byte, 4))
	if diff := cmp.Diff(0, n); diff != "" {
		t.Errorf("Read after latch n (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(io.EOF, err2, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("Read after latch err (-want, +got):\n%s", diff)
	}
}

func TestDecoderBadMagicOnSecondMember(t *testing.T) {
	t.Parallel()

	first := buildMember(t, "", []byte("ok"))
	garbage := make([]byte, 10) // 10 zero bytes: wrong magic, but long enough to rule out a truncation error.
	stream := append(append([]byte{}, first...), garbage...)

	t.Run("single decoder ignores trailing garbage", func(t *testing.T) {
		t.Parallel()

		dec := NewDecoder(bytes.NewReader(stream))
		got, err := io.ReadAll(dec)
		if diff := cmp.Diff(nil, err, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("ReadAll (-want, +got):\n%s", diff)
		}
		if diff := cmp.Diff("ok", string(got)); diff != "" {
			t.Errorf("decoded bytes (-want, +got):\n%s", diff)
		}
	})

	t.Run("multi decoder rejects trailing garbage", func(t *testing.T) {
		t.Parallel()

		dec := NewMultiDecoder(bytes.NewReader(stream))
		_, err := io.ReadAll(dec)
		if diff := cmp.Diff(true, errors.Is(err, ErrHeader)); diff != "" {
			t.Errorf("ReadAll error (-want, +got):\n%s", diff)
		}
	})
}

func TestDecoderRetriesAfterWouldBlock(t *testing.T) {
	t.Parallel()

	member := buildMember(t, "retry.txt", bytes.Repeat([]byte("retry payload "), 200))
	src := &faultSource{data: member, chunk: 5, blockEvery: 3}

	dec := NewDecoder(src)

	var out bytes.Buffer
	buf := make([]byte, 16)
	for {
		n, err := dec.Read(buf)
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

	want := bytes.Repeat([]byte("retry payload "), 200)
	if diff := cmp.Diff(want, out.Bytes()); diff != "" {
		t.Errorf("decoded bytes (-want, +got):\n%s", diff)
	}
}

func TestDecoderInnerAndIntoInner(t *testing.T) {
	t.Parallel()

	member := buildMember(t, "", []byte("x"))
	src := bytes.NewReader(member)
	dec := NewDecoder(src)

	if got := dec.Inner(); got != io.Reader(src) {
		t.Errorf("Inner = %v, want %v", got, src)
	}
	if got := dec.IntoInner(); got != io.Reader(src) {
		t.Errorf("IntoInner = %v, want %v", got, src)
	}
}
