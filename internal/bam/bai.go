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

// Package bam provides support for reading BAM index (BAI) files.
package bam

import (
	"fmt"
	"io"

	"github.com/googlegenomics/htscov/internal/binary"
	"github.com/googlegenomics/htscov/internal/index"
)

const (
	// Magic is the leading bytes of every BAI file.
	Magic = "BAI\x01"

	// The size of each tiling window from the linear index, as specified in the
	// SAM specification section 5.1.3, is 1<<minShift.
	minShift = 14
	depth    = 5
)

// This ID is used as a virtual bin ID for (unused) chunk metadata.
var metadataID = index.MetadataBin(depth)

// ReadIndex loads BAI formatted index data from bai.
func ReadIndex(bai io.Reader) (*index.Index, error) {
	return index.Load(bai, Magic, &Reader{})
}

// Reader contains support for reading information from BAI formatted data.
type Reader struct{}

// ReadSchemeSize returns the fixed binning scheme of the BAI format; BAI files
// do not store it.
func (*Reader) ReadSchemeSize(io.Reader) (int32, int32, error) {
	return minShift, depth, nil
}

// ReadBin reads a bin from r.  BAI bins carry no offset.
func (*Reader) ReadBin(r io.Reader) (*index.Bin, error) {
	var bin struct {
		ID     uint32
		Chunks int32
	}
	if err := binary.Read(r, &bin); err != nil {
		return nil, fmt.Errorf("reading bin header: %w", err)
	}
	return &index.Bin{ID: bin.ID, Chunks: bin.Chunks}, nil
}

// IsVirtualBin indicates if the provided ID identifies the metadata bin.
func (*Reader) IsVirtualBin(id uint32) bool {
	return id == metadataID
}

// ReadLinearIndex reads the 16kbp tiling offsets of a reference.
func (*Reader) ReadLinearIndex(r io.Reader) ([]uint64, error) {
	var intervals int32
	if err := binary.Read(r, &intervals); err != nil {
		return nil, fmt.Errorf("reading interval count: %w", err)
	}
	if intervals < 0 {
		return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
	}
	offsets := make([]uint64, intervals)
	if err := binary.Read(r, offsets); err != nil {
		return nil, fmt.Errorf("reading offsets: %w", err)
	}
	return offsets, nil
}
