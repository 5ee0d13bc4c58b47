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
	"bufio"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// gzip Header Values.
//
//	+---+---+---+---+---+---+---+---+---+---+
//	|ID1|ID2|CM |FLG|     MTIME     |XFL|OS |
//	+---+---+---+---+---+---+---+---+---+---+
const (
	hdrGzipID1   byte = 0x1f
	hdrGzipID2   byte = 0x8b
	hdrDeflateCM byte = 0x08
)

// FLG (Flags).
// bit 0 : FTEXT (ignored, always written as 0).
// bit 1 : FHCRC.
// bit 2 : FEXTRA.
// bit 3 : FNAME.
// bit 4 : FCOMMENT.
// bits 5-7: reserved (ignored).
const (
	flgCRC     = byte(1 << 1)
	flgExtra   = byte(1 << 2)
	flgName    = byte(1 << 3)
	flgComment = byte(1 << 4)
)

const (
	// XFLSlowest is the XFL value written when compressing at
	// [flate.BestCompression].
	XFLSlowest byte = 0x2

	// XFLFastest is the XFL value written when compressing at
	// [flate.BestSpeed].
	XFLFastest byte = 0x4
)

// Operating system identifiers for [Header.OS], per RFC 1952 section 2.3.1.
const (
	OSFAT byte = iota
	OSAmiga
	OSVMS
	OSUnix
	OSVM
	OSAtari
	OSHPFS
	OSMacintosh
	OSZSystem
	OSCPM
	OSTOPS20
	OSNTFS
	OSQDOS
	OSAcorn

	// OSUnknown represents an unknown operating system.
	OSUnknown = 0xff
)

// Header is the metadata carried by a gzip member. All byte sequences are
// raw bytes; no character encoding is imposed or validated.
//
// Name and Comment distinguish "absent" (nil) from "present but empty" (a
// non-nil pointer to the empty string), matching the wire format's FNAME
// and FCOMMENT flags, which can be set with a header value of just a zero
// terminator. Extra makes the same distinction using nil vs. a non-nil,
// possibly zero-length, slice.
type Header struct {
	// MTime is the modification time. The zero Time encodes as MTIME=0,
	// which readers must treat as "not set".
	MTime time.Time

	// OS is the OS header field.
	OS byte

	// Extra holds the FEXTRA sub-field bytes, or nil if FEXTRA is unset.
	Extra []byte

	// Name is the FNAME field, or nil if unset.
	Name *string

	// Comment is the FCOMMENT field, or nil if unset.
	Comment *string
}

// EncoderOpts configures how [NewEncoder] builds a member header.
type EncoderOpts struct {
	// Level is passed through to the deflate compressor, and also
	// determines the XFL byte: 2 for [flate.BestCompression], 4 for
	// [flate.BestSpeed], 0 otherwise.
	Level int

	// EmitHeaderCRC, if true, appends the optional FHCRC field (a
	// CRC-16, the low 16 bits of the CRC-32 over the preceding header
	// bytes). Off by default, matching [compress/gzip] and the absence
	// of header-CRC emission in comparable Go gzip writers.
	EmitHeaderCRC bool
}

// encodeHeader serializes h per RFC 1952 section 2.3, selecting XFL from
// level and optionally appending a header CRC-16.
//
// If h.Name or h.Comment contains an internal zero byte, encodeHeader
// rejects it with ErrHeader rather than silently truncating or corrupting
// the header framing (spec.md's open question, decided at construction
// time; see DESIGN.md).
func encodeHeader(h Header, opts EncoderOpts) ([]byte, error) {
	if h.Name != nil {
		if err := checkHeaderString(*h.Name); err != nil {
			return nil, fmt.Errorf("%w: name: %w", ErrHeader, err)
		}
	}
	if h.Comment != nil {
		if err := checkHeaderString(*h.Comment); err != nil {
			return nil, fmt.Errorf("%w: comment: %w", ErrHeader, err)
		}
	}
	if len(h.Extra) > 0xffff {
		return nil, fmt.Errorf("%w: extra field too large: %d bytes", ErrHeader, len(h.Extra))
	}

	var flg byte
	if h.Extra != nil {
		flg |= flgExtra
	}
	if h.Name != nil {
		flg |= flgName
	}
	if h.Comment != nil {
		flg |= flgComment
	}
	if opts.EmitHeaderCRC {
		flg |= flgCRC
	}

	buf := make([]byte, 10)
	buf[0] = hdrGzipID1
	buf[1] = hdrGzipID2
	buf[2] = hdrDeflateCM
	buf[3] = flg
	if !h.MTime.IsZero() {
		binary.LittleEndian.PutUint32(buf[4:8], uint32(h.MTime.Unix()))
	}
	switch opts.Level {
	case flate.BestCompression:
		buf[8] = XFLSlowest
	case flate.BestSpeed:
		buf[8] = XFLFastest
	}
	buf[9] = h.OS

	if h.Extra != nil {
		xlen := make([]byte, 2)
		binary.LittleEndian.PutUint16(xlen, uint16(len(h.Extra)))
		buf = append(buf, xlen...)
		buf = append(buf, h.Extra...)
	}
	if h.Name != nil {
		buf = append(buf, []byte(*h.Name)...)
		buf = append(buf, 0)
	}
	if h.Comment != nil {
		buf = append(buf, []byte(*h.Comment)...)
		buf = append(buf, 0)
	}

	if opts.EmitHeaderCRC {
		sum := crc32.ChecksumIEEE(buf)
		crc16 := make([]byte, 2)
		binary.LittleEndian.PutUint16(crc16, uint16(sum))
		buf = append(buf, crc16...)
	}

	return buf, nil
}

// checkHeaderString rejects strings containing an internal zero byte,
// which would terminate the FNAME/FCOMMENT field early and desynchronize
// the rest of the header.
func checkHeaderString(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return fmt.Errorf("contains a zero byte at index %d", i)
		}
	}
	return nil
}

// parseHeader reads one gzip header from src, tolerating short reads: any
// bytes consumed before a retry-able error (ErrWouldBlock or an unexpected
// EOF wrapped from the underlying source) remain available for replay on
// the next call through src, a *resumableReader. See resumableReader for
// the replay contract.
//
// The FHCRC check, when present, reads src.CRC(): resumableReader
// accumulates that CRC-32 itself, over the underlying bytes exactly once
// each, so it stays correct across any number of would-block retries --
// unlike a crcReader freshly wrapped around src on every parseHeader
// call, which would only ever see the bytes pulled during its own call.
func parseHeader(src *resumableReader) (Header, error) {
	var h Header

	// Start every attempt at the front of the replay buffer, so bytes an
	// earlier, interrupted attempt pulled are served again in order.
	src.pos = 0

	fixed := make([]byte, 10)
	if _, err := io.ReadFull(src, fixed); err != nil {
		return h, headerReadErr(err)
	}
	if fixed[0] != hdrGzipID1 || fixed[1] != hdrGzipID2 {
		return h, fmt.Errorf("%w: bad magic bytes %x %x", ErrHeader, fixed[0], fixed[1])
	}
	if fixed[2] != hdrDeflateCM {
		return h, fmt.Errorf("%w: unsupported compression method %x", ErrHeader, fixed[2])
	}
	flg := fixed[3]
	if mtime := binary.LittleEndian.Uint32(fixed[4:8]); mtime > 0 {
		h.MTime = time.Unix(int64(mtime), 0)
	}
	// fixed[8] (XFL) carries no information a decoder needs to act on.
	h.OS = fixed[9]

	if flg&flgExtra != 0 {
		xlenBuf := make([]byte, 2)
		if _, err := io.ReadFull(src, xlenBuf); err != nil {
			return h, headerReadErr(err)
		}
		xlen := binary.LittleEndian.Uint16(xlenBuf)
		extra := make([]byte, xlen)
		if _, err := io.ReadFull(src, extra); err != nil {
			return h, headerReadErr(err)
		}
		h.Extra = extra
	}

	if flg&flgName != 0 {
		s, err := readHeaderString(src)
		if err != nil {
			return h, err
		}
		h.Name = &s
	}

	if flg&flgComment != 0 {
		s, err := readHeaderString(src)
		if err != nil {
			return h, err
		}
		h.Comment = &s
	}

	if flg&flgCRC != 0 {
		// Per RFC 1952 section 2.3.1, FHCRC covers every header byte up
		// to but not including these two bytes, so the running CRC must
		// be read out before they are consumed.
		got := uint16(src.CRC())
		crcBuf := make([]byte, 2)
		if _, err := io.ReadFull(src, crcBuf); err != nil {
			return h, headerReadErr(err)
		}
		want := binary.LittleEndian.Uint16(crcBuf)
		if got != want {
			return h, fmt.Errorf("%w: header CRC-16 mismatch: got %x want %x", ErrHeader, got, want)
		}
	}

	return h, nil
}

// readHeaderString reads a zero-terminated byte string from r, not
// imposing any charset, and returns it without the terminator.
func readHeaderString(r io.Reader) (string, error) {
	var b []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", headerReadErr(err)
		}
		if buf[0] == 0 {
			return string(b), nil
		}
		b = append(b, buf[0])
	}
}

// headerReadErr classifies an error from reading header bytes: a
// short-read / would-block signal propagates unchanged so the caller can
// retry; anything else, including a genuine EOF or unexpected EOF, is
// fatal bad-header per spec.md section 4.2 step 1.
func headerReadErr(err error) error {
	if isWouldBlock(err) {
		return err
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %w", ErrHeader, err)
	}
	return err
}

// newInflater constructs the deflate decompressor collaborator used by
// Decoder, wired atop a *bufio.Reader so that any bytes the flate reader
// reads ahead of the final deflate block remain retrievable from the same
// bufio.Reader once decompression reaches EOF -- see DESIGN.md's note on
// trailer recovery across the deflate boundary.
func newInflater(br *bufio.Reader) io.ReadCloser {
	return flate.NewReader(br)
}
