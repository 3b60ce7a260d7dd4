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

// Package storage reads BAM files and their indexes from local directories,
// Cloud Storage and Amazon S3.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Location schemes of remote objects.
const (
	GCSScheme = "gs"
	S3Scheme  = "s3"
)

// DefaultBlockSize is the read buffer size used for ranged reads.
const DefaultBlockSize = 1024 * 1024

type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle
}

type ObjectHandle interface {
	// NewRangeReader returns a reader that reads from a specified
	// range. Length of -1 means to capture everything until the
	// end.
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// IsNotFound reports whether err was caused by a missing object.
func IsNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, gcs.ErrObjectNotExist) || errors.As(err, &noSuchKey)
}

// Location names an object.  Local paths have an empty Scheme and Bucket.
type Location struct {
	Scheme string
	Bucket string
	Object string
}

// ParseLocation splits a gs://bucket/object or s3://bucket/object location.
// Any other location is a local path.
func ParseLocation(location string) (Location, error) {
	scheme, rest, ok := strings.Cut(location, "://")
	if !ok || (scheme != GCSScheme && scheme != S3Scheme) {
		return Location{Object: location}, nil
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return Location{}, fmt.Errorf("invalid location %q, want %s://bucket/object", location, scheme)
	}
	return Location{Scheme: scheme, Bucket: bucket, Object: object}, nil
}

// ReadSeeker reads an object sequentially through ranged reads.  A seek
// only records the new offset; the next Read opens a range starting there.
type ReadSeeker struct {
	ctx       context.Context
	object    ObjectHandle
	blockSize int

	offset int64
	closer io.Closer
	reader *bufio.Reader
}

// NewReadSeeker returns a ReadSeeker over object.  Reads are buffered in
// blocks of blockSize bytes, or DefaultBlockSize if blockSize is not
// positive.
func NewReadSeeker(ctx context.Context, object ObjectHandle, blockSize int) *ReadSeeker {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &ReadSeeker{ctx: ctx, object: object, blockSize: blockSize}
}

func (r *ReadSeeker) Read(p []byte) (int, error) {
	if r.reader == nil {
		rc, err := r.object.NewRangeReader(r.ctx, r.offset, -1)
		if err != nil {
			return 0, fmt.Errorf("opening range at %d: %w", r.offset, err)
		}
		r.closer = rc
		r.reader = bufio.NewReaderSize(rc, r.blockSize)
	}
	n, err := r.reader.Read(p)
	r.offset += int64(n)
	return n, err
}

// Seek supports io.SeekStart and io.SeekCurrent.
func (r *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.offset
	default:
		return r.offset, fmt.Errorf("unsupported whence %d", whence)
	}
	if offset < 0 {
		return r.offset, fmt.Errorf("negative offset %d", offset)
	}
	if offset != r.offset {
		r.release()
		r.offset = offset
	}
	return r.offset, nil
}

func (r *ReadSeeker) release() {
	if r.closer != nil {
		r.closer.Close()
	}
	r.closer, r.reader = nil, nil
}

// Close releases the open range, if any.
func (r *ReadSeeker) Close() error {
	r.release()
	return nil
}

// Opener opens BAM and index locations given on the command line.
type Opener struct {
	// GCS serves gs:// locations and S3 serves s3:// locations.  When nil
	// the default client is created on first use.
	GCS       Client
	S3        Client
	BlockSize int
}

func (o *Opener) client(ctx context.Context, scheme string) (Client, error) {
	var err error
	switch scheme {
	case GCSScheme:
		if o.GCS == nil {
			o.GCS, err = NewDefaultClient(ctx)
		}
		return o.GCS, err
	case S3Scheme:
		if o.S3 == nil {
			o.S3, err = NewS3Client(ctx)
		}
		return o.S3, err
	}
	return nil, fmt.Errorf("unsupported scheme %q", scheme)
}

// Open returns a reader for a local path or a remote object location.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadSeekCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == "" {
		return os.Open(loc.Object)
	}
	client, err := o.client(ctx, loc.Scheme)
	if err != nil {
		return nil, err
	}
	rs := NewReadSeeker(ctx, client.NewObjectHandle(loc.Bucket, loc.Object), o.BlockSize)
	// Open the first range now so a missing object fails here.
	if _, err := rs.Read(nil); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("opening %s: %w", location, err)
	}
	return rs, nil
}
