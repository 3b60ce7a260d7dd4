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

// Package csi contains support for processing the information in a CSI file (http://samtools.github.io/hts-specs/CSIv1.pdf).
package csi

import (
	"compress/gzip"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/googlegenomics/htscov/internal/binary"
	"github.com/googlegenomics/htscov/internal/index"
)

// Magic is the leading bytes of the decompressed CSI data.
const Magic = "CSI\x01"

// ReadIndex loads CSI formatted index data from r, which must still be BGZF
// compressed.
func ReadIndex(r io.Reader) (*index.Index, error) {
	csi, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %w", err)
	}
	defer csi.Close()
	return index.Load(csi, Magic, &Reader{})
}

// Reader contains support for reading information from CSI formatted data.
// The metadata bin depends on the scheme depth, so a Reader must not be
// shared between files.
type Reader struct {
	depth int32
}

// ReadSchemeSize reads the CSI formated index data header and returns the scheme size.
func (reader *Reader) ReadSchemeSize(csi io.Reader) (int32, int32, error) {
	var csiHeader struct {
		MinimumWidth   int32
		Depth          int32
		AuxilaryLength int32
	}
	if err := binary.Read(csi, &csiHeader); err != nil {
		return 0, 0, fmt.Errorf("reading the csi header: %w", err)
	}
	if csiHeader.MinimumWidth <= 0 || csiHeader.Depth <= 0 || csiHeader.AuxilaryLength < 0 {
		return 0, 0, fmt.Errorf("invalid csi header %+v", csiHeader)
	}
	if _, err := io.CopyN(ioutil.Discard, csi, int64(csiHeader.AuxilaryLength)); err != nil {
		return 0, 0, fmt.Errorf("reading past auxiliary data: %w", err)
	}
	reader.depth = csiHeader.Depth
	return csiHeader.MinimumWidth, csiHeader.Depth, nil
}

// ReadBin reads a bin from r.
func (*Reader) ReadBin(r io.Reader) (*index.Bin, error) {
	var bin index.Bin
	if err := binary.Read(r, &bin); err != nil {
		return nil, fmt.Errorf("reading bin header: %w", err)
	}
	return &bin, nil
}

// IsVirtualBin indicates if the provided ID identifies a virtual bin that is used to store
// metadata.
func (reader *Reader) IsVirtualBin(id uint32) bool {
	return id == index.MetadataBin(reader.depth)
}

// ReadLinearIndex returns nil: CSI replaces the linear index with per-bin
// offsets.
func (*Reader) ReadLinearIndex(io.Reader) ([]uint64, error) {
	return nil, nil
}
