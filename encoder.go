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
	"encoding/binary"
	"fmt"
	"io"
)

// compressor is the deflate compressor collaborator: it pulls plaintext
// from src on demand and yields compressed bytes through Read, buffering
// only what [flate.Writer] has produced but not yet been drained.
//
// This mirrors the teacher's Writer, which pushes plaintext into a
// [flate.Writer] writing into a *bytes.Buffer and then drains that buffer
// to its destination; here the same chunkBuf/flate.Writer pairing is
// driven by pull (Read) rather than push (Write), so that Encoder can
// expose a single pull-based Read without spawning a goroutine -- spec.md
// section 5 rules out any background work.
type compressor struct {
	fw    *flate.Writer
	out   bytes.Buffer
	src   reader
	chunk []byte
	done  bool
}

func newCompressor(src reader, level int) (*compressor, error) {
	c := &compressor{
		src:   src,
		chunk: make([]byte, 32*1024),
	}
	fw, err := flate.NewWriter(&c.out, level)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing deflate writer: %w", errGzstream, err)
	}
	c.fw = fw
	return c, nil
}

// Read returns (0, nil) once the source has EOF'd and every compressed
// byte flate produced has been drained, and on every call after that --
// the contract Encoder relies on to move from the body phase into the
// trailer phase.
func (c *compressor) Read(p []byte) (int, error) {
	for c.out.Len() == 0 {
		if c.done {
			return 0, nil
		}

		n, err := c.src.Read(c.chunk)
		if n > 0 {
			if _, werr := c.fw.Write(c.chunk[:n]); werr != nil {
				return 0, fmt.Errorf("%w: compressing: %w", errGzstream, werr)
			}
		}
		switch {
		case err == io.EOF:
			if cerr := c.fw.Close(); cerr != nil {
				return 0, fmt.Errorf("%w: compressing: %w", errGzstream, cerr)
			}
			c.done = true
		case err != nil:
			return 0, err
		}
	}
	return c.out.Read(p)
}

// Encoder wraps an uncompressed byte source and produces a single RFC 1952
// gzip member: the pre-built header, the deflate-compressed body, and an
// 8-byte trailer, in that order, as consumers call Read.
type Encoder struct {
	src    io.Reader
	header []byte
	comp   *compressor
	crc    *crcReader

	pos     int
	eof     bool
	trailer [8]byte
}

// NewEncoder builds an Encoder that reads uncompressed bytes from src and
// yields a gzip member describing h, compressed at opts.Level.
func NewEncoder(src io.Reader, h Header, opts EncoderOpts) (*Encoder, error) {
	header, err := encodeHeader(h, opts)
	if err != nil {
		return nil, err
	}

	crc := newCRCReader(src)
	comp, err := newCompressor(crc, opts.Level)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		src:    src,
		header: header,
		comp:   comp,
		crc:    crc,
	}, nil
}

// Read fills p from, in order: the remaining pre-built header bytes, the
// deflate-compressed body, and the 8-byte trailer. A Read returning (0,
// io.EOF) is definitive end of stream. Errors from the compressor or the
// underlying source, including ErrWouldBlock, propagate unchanged and
// leave the Encoder in a well-defined state a caller may retry from:
// unlike Decoder, Encoder never latches an error.
func (e *Encoder) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		switch {
		case !e.eof && e.pos < len(e.header):
			n := copy(p[total:], e.header[e.pos:])
			e.pos += n
			total += n

		case !e.eof:
			n, err := e.comp.Read(p[total:])
			total += n
			if err != nil {
				return total, err
			}
			if n == 0 {
				e.eof = true
				e.pos = 0
				binary.LittleEndian.PutUint32(e.trailer[0:4], e.crc.Sum())
				binary.LittleEndian.PutUint32(e.trailer[4:8], e.crc.Amount())
			}

		default: // e.eof == true: trailer phase.
			if e.pos >= len(e.trailer) {
				if total == 0 {
					return 0, io.EOF
				}
				return total, nil
			}
			n := copy(p[total:], e.trailer[e.pos:])
			e.pos += n
			total += n
		}
	}
	return total, nil
}

// Inner returns the underlying source, still owned by the Encoder.
// Interleaving external reads of it will corrupt the gzip framing.
func (e *Encoder) Inner() io.Reader { return e.src }

// IntoInner releases the Encoder's hold on its underlying source and
// returns it. The Encoder must not be used again afterward.
func (e *Encoder) IntoInner() io.Reader { return e.src }
