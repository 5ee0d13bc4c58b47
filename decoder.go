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
	"io"
)

// decoderState is the tag of the decoder's state machine; see spec.md
// section 3, "Decoder state".
type decoderState int

const (
	stateHeader decoderState = iota
	stateBody
	stateFinished
	stateErr
	stateEnd
)

// Decoder consumes one or more concatenated gzip members from an
// underlying byte source and yields the original uncompressed bytes
// through a pull-based Read. Build one with [NewDecoder] (single member)
// or [NewMultiDecoder] (concatenated members, "multistream").
//
// Decoder latches every fatal error: once Read has returned a non-nil,
// non-ErrWouldBlock error, every subsequent Read returns (0, io.EOF). A
// [ErrWouldBlock] error, by contrast, leaves the Decoder exactly where it
// was, ready for the caller to retry.
type Decoder struct {
	raw   io.Reader
	br    *bufio.Reader
	multi bool

	state  decoderState
	hdrBuf *resumableReader
	header *Header

	inflate io.ReadCloser
	crc     *crcReader

	finPos  int
	trailer [8]byte

	err error
}

// NewDecoder builds a Decoder reading a single gzip member from r. It does
// not read anything from r until the first call to Read.
func NewDecoder(r io.Reader) *Decoder {
	return newDecoder(r, false)
}

// NewMultiDecoder builds a Decoder reading any number of concatenated
// gzip members from r ("multistream"), yielding the concatenation of
// their uncompressed bytes.
func NewMultiDecoder(r io.Reader) *MultiDecoder {
	return &MultiDecoder{newDecoder(r, true)}
}

func newDecoder(r io.Reader, multi bool) *Decoder {
	br := bufio.NewReader(r)
	return &Decoder{
		raw:    r,
		br:     br,
		multi:  multi,
		state:  stateHeader,
		hdrBuf: newResumableReader(br),
	}
}

// MultiDecoder is a Decoder configured for multistream input. It is a
// distinct type purely for API clarity at call sites; see spec.md's C6.
type MultiDecoder struct {
	*Decoder
}

// Header returns the most recently parsed member header, and whether a
// header has been parsed at all yet.
func (d *Decoder) Header() (Header, bool) {
	if d.header == nil {
		return Header{}, false
	}
	return *d.header, true
}

// Inner returns the underlying source, still owned by the Decoder.
// Interleaving external reads of it will corrupt the gzip framing.
func (d *Decoder) Inner() io.Reader { return d.raw }

// IntoInner releases the Decoder's hold on its underlying source and
// returns it. The Decoder must not be used again afterward.
func (d *Decoder) IntoInner() io.Reader { return d.raw }

// Read implements the state machine of spec.md section 4.5: Header once,
// then Body, then Finished (trailer), then End or back to Header for the
// next member. See decoderState for the full transition diagram.
func (d *Decoder) Read(p []byte) (int, error) {
	for {
		switch d.state {
		case stateHeader:
			if n, err, done := d.stepHeader(); !done {
				return n, err
			}

		case stateBody:
			n, err, done := d.stepBody(p)
			if !done {
				return n, err
			}

		case stateFinished:
			if n, err, done := d.stepFinished(); !done {
				return n, err
			}

		case stateErr:
			err := d.err
			d.err = nil
			d.state = stateEnd
			return 0, err

		case stateEnd:
			return 0, io.EOF
		}
	}
}

// stepHeader attempts one header parse. done is false when the caller
// must return immediately (would-block); the (n, err) pair is then the
// value Read should return.
func (d *Decoder) stepHeader() (n int, err error, done bool) {
	h, perr := parseHeader(d.hdrBuf)
	if perr == nil {
		hh := h
		d.header = &hh
		d.hdrBuf.Discard()
		if d.inflate == nil {
			d.inflate = newInflater(d.br)
			d.crc = newCRCReader(d.inflate)
		}
		d.state = stateBody
		return 0, nil, true
	}
	if isWouldBlock(perr) {
		return 0, perr, false
	}
	d.err = perr
	d.state = stateErr
	return 0, nil, true
}

func (d *Decoder) stepBody(p []byte) (n int, err error, done bool) {
	if len(p) == 0 {
		return 0, nil, false
	}

	n, berr := d.crc.Read(p)
	if n > 0 {
		return n, nil, false
	}
	if berr == nil {
		// A zero-byte, nil-error read signals the same thing as io.EOF
		// here: the deflate stream has nothing left to give.
		berr = io.EOF
	}
	if isWouldBlock(berr) {
		return 0, berr, false
	}
	if berr == io.EOF {
		d.state = stateFinished
		d.finPos = 0
		return 0, nil, true
	}
	d.err = berr
	d.state = stateErr
	return 0, nil, true
}

func (d *Decoder) stepFinished() (n int, err error, done bool) {
	if d.finPos < len(d.trailer) {
		rn, rerr := d.br.Read(d.trailer[d.finPos:])
		if rn > 0 {
			d.finPos += rn
		}
		if rerr != nil {
			if isWouldBlock(rerr) {
				return 0, rerr, false
			}
			d.err = fmt.Errorf("%w: reading trailer: %w", ErrChecksum, io.ErrUnexpectedEOF)
			d.state = stateErr
			return 0, nil, true
		}
		if rn == 0 {
			d.err = fmt.Errorf("%w: reading trailer: %w", ErrChecksum, io.ErrUnexpectedEOF)
			d.state = stateErr
			return 0, nil, true
		}
		return 0, nil, true // loop back into stepFinished to keep filling the trailer
	}

	wantCRC := binary.LittleEndian.Uint32(d.trailer[0:4])
	wantSize := binary.LittleEndian.Uint32(d.trailer[4:8])
	if wantCRC != d.crc.Sum() || wantSize != d.crc.Amount() {
		d.err = fmt.Errorf("%w: crc32 got %#x want %#x, isize got %d want %d",
			ErrChecksum, d.crc.Sum(), wantCRC, d.crc.Amount(), wantSize)
		d.state = stateErr
		return 0, nil, true
	}

	if !d.multi {
		d.state = stateEnd
		return 0, nil, true
	}

	if _, perr := d.br.Peek(1); perr != nil {
		if isWouldBlock(perr) {
			return 0, perr, false
		}
		if perr == io.EOF {
			d.state = stateEnd
			return 0, nil, true
		}
		d.err = perr
		d.state = stateErr
		return 0, nil, true
	}

	// More data follows: reset for the next member, retaining br (and
	// whatever it has already buffered) and the underlying raw source.
	if resetter, ok := d.inflate.(flate.Resetter); ok {
		if rerr := resetter.Reset(d.br, nil); rerr != nil {
			d.err = rerr
			d.state = stateErr
			return 0, nil, true
		}
	}
	d.crc.Reset()
	d.header = nil
	d.hdrBuf = newResumableReader(d.br)
	d.state = stateHeader
	return 0, nil, true
}
