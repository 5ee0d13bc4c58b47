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

// Package gzstream implements a streaming RFC 1952 gzip codec.
//
// It provides a gzip [Encoder] that synthesizes a gzip member from a raw
// byte source, and a gzip [Decoder] that consumes one or more concatenated
// gzip members and yields the original bytes. Both sides expose a
// pull-based [io.Reader] interface and may report a transient
// [ErrWouldBlock] at any point if the underlying source has no data ready;
// callers are expected to retry in that case.
//
// Unless otherwise informed clients should not assume implementations in
// this package are safe for parallel execution.
package gzstream
