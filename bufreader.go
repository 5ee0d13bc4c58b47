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
	"hash/crc32"
	"io"
)

// resumableReader layers a growable replay buffer over an underlying byte
// source so that gzip header parsing -- a variable-length binary dance --
// can be retried after a short read without losing bytes already
// consumed.
//
// Read first serves bytes out of the buffer starting at its cursor. If
// that doesn't satisfy the request, it pulls more from the underlying
// source, appends whatever it got to the buffer (so a retry replays it),
// and returns. A short read or error from the underlying source is
// re-raised unchanged; critically, any bytes it did return are already
// appended to the buffer before the error is returned, so the next call
// picks up exactly where this one left off.
//
// resumableReader also accumulates a running CRC-32 over every byte it
// ever pulls from the underlying source, counted exactly once regardless
// of how many times a replayed byte is served back out of the buffer.
// parseHeader relies on this to validate FHCRC correctly even when a
// header parse is interrupted by ErrWouldBlock and retried with a fresh
// call, which would otherwise lose the CRC contribution of bytes
// consumed by the abandoned attempt.
//
// The buffer is never discarded automatically: the owner (parseHeader's
// caller, the decoder's Header state) calls Discard once a parse
// completes successfully.
type resumableReader struct {
	src io.Reader
	buf []byte
	pos int

	crc uint32
	n   uint32
}

func newResumableReader(src io.Reader) *resumableReader {
	return &resumableReader{src: src}
}

func (r *resumableReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	if r.pos < len(r.buf) {
		n = copy(p, r.buf[r.pos:])
		r.pos += n
		if n == len(p) {
			return n, nil
		}
	}

	m, err := r.src.Read(p[n:])
	if m > 0 {
		r.buf = append(r.buf, p[n:n+m]...)
		r.pos += m
		r.crc = crc32.Update(r.crc, crc32.IEEETable, p[n:n+m])
		r.n += uint32(m)
		return n + m, err
	}
	if err == nil {
		// A zero-byte, no-error read from the inner source during header
		// parsing would otherwise loop or silently stall; treat it as an
		// unexpected EOF rather than letting it propagate as progress.
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// CRC returns the CRC-32 accumulated over every byte pulled from the
// underlying source since the last Discard, regardless of how many
// parseHeader attempts that spanned.
func (r *resumableReader) CRC() uint32 { return r.crc }

// Discard drops the replay buffer and resets the running CRC after a
// successful parse. Only the owner of a completed parse should call
// this.
func (r *resumableReader) Discard() {
	r.buf = nil
	r.pos = 0
	r.crc = 0
	r.n = 0
}

// Buffered reports how many bytes the replay buffer currently holds.
func (r *resumableReader) Buffered() int {
	return len(r.buf)
}
