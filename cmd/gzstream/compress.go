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
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ndyakov/gzstream"
)

type compress struct {
	path  string
	force bool
	keep  bool
	level int
}

func (c *compress) Run() error {
	newPath := c.path + ".gz"

	from, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrGzstream, err)
	}
	defer from.Close()

	fInfo, err := from.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", ErrGzstream, from.Name(), err)
	}
	modTime := fInfo.ModTime()
	name := filepath.Base(from.Name())

	flags := os.O_CREATE | os.O_WRONLY
	if !c.force {
		// Do not overwrite existing files unless --force is specified.
		flags |= os.O_EXCL
	}

	dst, err := os.OpenFile(newPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrGzstream, err)
	}
	defer dst.Close()

	level := c.level
	if level == 0 {
		level = flate.DefaultCompression
	}

	enc, err := gzstream.NewEncoder(from, gzstream.Header{
		MTime: modTime,
		OS:    gzstream.OSUnknown,
		Name:  &name,
	}, gzstream.EncoderOpts{Level: level})
	if err != nil {
		return fmt.Errorf("%w: creating encoder: %w", ErrGzstream, err)
	}

	if _, err := io.Copy(dst, enc); err != nil {
		return fmt.Errorf("%w: compressing file %q: %w", ErrGzstream, from.Name(), err)
	}

	if !c.keep {
		if err := os.Remove(c.path); err != nil {
			return fmt.Errorf("%w: removing file: %w", ErrGzstream, err)
		}
	}

	return nil
}
