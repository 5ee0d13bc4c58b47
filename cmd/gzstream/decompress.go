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

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ndyakov/gzstream"
)

type decompress struct {
	path        string
	force       bool
	keep        bool
	multistream bool
}

var errTruncate = errors.New("cannot truncate filename")

func (d *decompress) Run() error {
	newPath := strings.TrimSuffix(d.path, ".gz")
	if newPath == d.path {
		return fmt.Errorf("%w: %q", errTruncate, d.path)
	}

	from, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrGzstream, err)
	}
	defer from.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if !d.force {
		flags |= os.O_EXCL
	}

	dst, err := os.OpenFile(newPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrGzstream, err)
	}
	defer dst.Close()

	var src io.Reader
	if d.multistream {
		src = gzstream.NewMultiDecoder(from)
	} else {
		src = gzstream.NewDecoder(from)
	}

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: decompressing file %q: %w", ErrGzstream, from.Name(), err)
	}

	if !d.keep {
		if err := os.Remove(d.path); err != nil {
			return fmt.Errorf("%w: removing file: %w", ErrGzstream, err)
		}
	}

	return nil
}
