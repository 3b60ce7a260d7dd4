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

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileClient serves objects from a local directory.  The bucket names a
// subdirectory of Root and may be empty.
type FileClient struct {
	Root string
}

func (c FileClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return fileObjectHandle{filepath.Join(c.Root, bucket, filepath.FromSlash(object))}
}

type fileObjectHandle struct {
	path string
}

type fileRangeReader struct {
	io.Reader
	file *os.File
}

func (r fileRangeReader) Close() error {
	return r.file.Close()
}

func (h fileObjectHandle) NewRangeReader(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	file, err := os.Open(h.path)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seeking to %d: %w", offset, err)
	}
	var reader io.Reader = file
	if length >= 0 {
		reader = io.LimitReader(file, length)
	}
	return fileRangeReader{reader, file}, nil
}
