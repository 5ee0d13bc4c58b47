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

import "errors"

var (
	// errGzstream is the base error for all gzstream errors.
	errGzstream = errors.New("gzstream")

	// ErrHeader indicates a structurally invalid gzip header: bad magic
	// bytes, an unsupported compression method, or a header CRC-16
	// mismatch. It is always fatal.
	ErrHeader = errors.New("gzstream: invalid header")

	// ErrChecksum indicates the trailer's CRC-32 or ISIZE did not match
	// the uncompressed data actually decoded. It is always fatal.
	ErrChecksum = errors.New("gzstream: invalid checksum")

	// ErrWouldBlock is returned by an underlying io.Reader supplied to an
	// Encoder or Decoder to signal that no bytes are presently available
	// and the caller should retry later. It is not fatal: both Encoder
	// and Decoder preserve all state needed to resume correctly on the
	// next call. Underlying sources may wrap this error (fmt.Errorf
	// "%w"); callers and this package detect it with errors.Is.
	ErrWouldBlock = errors.New("gzstream: would block")
)

// isWouldBlock reports whether err signals a non-fatal, retry-able
// short read from an underlying source rather than a real failure.
func isWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
