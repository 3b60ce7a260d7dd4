// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// CompressedSuffix marks output files written as an LZ4 frame.
const CompressedSuffix = ".lz4"

type compressedFile struct {
	*lz4.Writer
	file *os.File
}

func (c compressedFile) Close() error {
	if err := c.Writer.Close(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// Create creates the output file at path.  A path ending in ".lz4" is
// compressed.
func Create(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedSuffix) {
		return file, nil
	}
	return compressedFile{lz4.NewWriter(file), file}, nil
}

// Open opens the input file at path, decompressing it when the path ends in
// ".lz4".
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedSuffix) {
		return file, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{lz4.NewReader(file), file}, nil
}
