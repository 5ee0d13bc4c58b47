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
	"fmt"
	"io"
	"os"

	"github.com/rodaine/table"

	"github.com/ndyakov/gzstream"
)

type list struct {
	path        string
	multistream bool
}

func (l *list) Run(w io.Writer) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrGzstream, err)
	}
	defer f.Close()

	fInfo, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat: %w", ErrGzstream, err)
	}
	compressed := fInfo.Size()

	tbl := table.New("name", "date", "time", "comment", "compressed", "uncompressed", "ratio")
	tbl = tbl.WithWriter(w)

	if l.multistream {
		z := gzstream.NewMultiDecoder(f)
		uncompressed, err := io.Copy(io.Discard, z)
		if err != nil {
			return fmt.Errorf("%w: reading archive: %w", ErrGzstream, err)
		}
		h, _ := z.Header()
		addListRow(tbl, l.path, h, compressed, uncompressed)
		tbl.Print()
		return nil
	}

	z := gzstream.NewDecoder(f)
	uncompressed, err := io.Copy(io.Discard, z)
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrGzstream, err)
	}
	h, _ := z.Header()
	addListRow(&tbl, l.path, h, compressed, uncompressed)
	tbl.Print()

	return nil
}

func addListRow(tbl table.Table, path string, h gzstream.Header, compressed, uncompressed int64) {
	name := path
	if h.Name != nil && *h.Name != "" {
		name = *h.Name
	}
	comment := ""
	if h.Comment != nil {
		comment = *h.Comment
	}

	ratio := 0.0
	if uncompressed > 0 {
		ratio = (1 - float64(compressed)/float64(uncompressed)) * 100
	}

	tbl.AddRow(
		name,
		h.MTime.Format("2006-01-02"),
		h.MTime.Format("15:04:05"),
		comment,
		fmt.Sprintf("%d", compressed),
		fmt.Sprintf("%d", uncompressed),
		fmt.Sprintf("%.1f%%", ratio),
	)
}
