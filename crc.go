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

import "hash/crc32"

// crcReader wraps an inner io.Reader, updating a running CRC-32 (IEEE
// polynomial, the gzip variant) and byte count over every byte that flows
// through Read. Short reads and errors from the inner reader propagate
// unchanged; the CRC and count only ever advance by the bytes actually
// returned to the caller.
//
// This is the read-side half of the "CRC reader/writer adapter": both the
// encoder (CRC over plaintext pulled from the user's source) and the
// decoder (CRC over plaintext pulled from the deflate decompressor) only
// ever need to wrap a reader, so no writer-side variant is implemented; see
// DESIGN.md.
type crcReader struct {
	r   reader
	crc uint32
	n   uint32
}

// reader is the minimal collaborator interface crcReader wraps: either the
// user's raw byte source (encoder path) or the deflate decompressor
// (decoder path).
type reader interface {
	Read(p []byte) (int, error)
}

func newCRCReader(r reader) *crcReader {
	return &crcReader{r: r}
}

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
		c.n += uint32(n)
	}
	return n, err
}

// Sum returns the CRC-32 accumulated so far.
func (c *crcReader) Sum() uint32 { return c.crc }

// Amount returns the number of bytes that have flowed through Read so far,
// modulo 2^32.
func (c *crcReader) Amount() uint32 { return c.n }

// Reset zeroes both the running CRC and the byte count.
func (c *crcReader) Reset() {
	c.crc = 0
	c.n = 0
}

// Inner returns the wrapped reader.
func (c *crcReader) Inner() reader { return c.r }
