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

// Package index loads binning indexes (BAI and CSI) into memory and answers
// chunk queries for genomic regions.
package index

import (
	"fmt"
	"io"

	"github.com/googlegenomics/htscov/internal/bgzf"
	"github.com/googlegenomics/htscov/internal/binary"
	"github.com/googlegenomics/htscov/internal/genomics"
)

// Reader is an interface for reading format specific information from index data.
type Reader interface {
	// ReadSchemeSize reads the binning scheme's width which is the number of bits for
	// the minimal interval and the depth of the binning index.
	ReadSchemeSize(io.Reader) (int32, int32, error)
	// ReadBin reads a bin.
	ReadBin(io.Reader) (*Bin, error)
	// IsVirtualBin indicates if the provided ID identifies a virtual bin that is used to store
	// metadata.
	IsVirtualBin(uint32) bool
	// ReadLinearIndex reads the linear index that follows the bins of a
	// reference, if the format has one.
	ReadLinearIndex(io.Reader) ([]uint64, error)
}

// Bin represents a contignous genomic region.
type Bin struct {
	// ID is an identifier for the bin.
	ID uint32
	// Offset is the (virtual) file offset of the first overlapping record.
	Offset uint64
	// Chunks is the number of chunks in the bin.
	Chunks int32
}

type bin struct {
	offset bgzf.Address
	chunks []bgzf.Chunk
}

type reference struct {
	bins    map[uint32]*bin
	offsets []uint64
}

// Index holds the bins and linear offsets of every reference in an index file.
type Index struct {
	minShift, depth int32
	references      []reference
}

// Load reads index data from r.  The function takes a reader that reads
// format specific information from the input reader.
func Load(r io.Reader, magic string, reader Reader) (*Index, error) {
	if err := binary.ExpectBytes(r, []byte(magic)); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}

	minShift, depth, err := reader.ReadSchemeSize(r)
	if err != nil {
		return nil, fmt.Errorf("reading the scheme size: %w", err)
	}

	var references int32
	if err := binary.Read(r, &references); err != nil {
		return nil, fmt.Errorf("reading reference count: %w", err)
	}
	if references < 0 {
		return nil, fmt.Errorf("invalid reference count (%d references)", references)
	}

	idx := &Index{minShift: minShift, depth: depth, references: make([]reference, references)}
	for i := range idx.references {
		ref := &idx.references[i]
		ref.bins = make(map[uint32]*bin)

		var binCount int32
		if err := binary.Read(r, &binCount); err != nil {
			return nil, fmt.Errorf("reading bin count: %w", err)
		}
		for j := int32(0); j < binCount; j++ {
			header, err := reader.ReadBin(r)
			if err != nil {
				return nil, fmt.Errorf("reading bin: %w", err)
			}
			if header.Chunks < 0 {
				return nil, fmt.Errorf("invalid chunk count (%d chunks)", header.Chunks)
			}

			chunks := make([]bgzf.Chunk, header.Chunks)
			if err := binary.Read(r, chunks); err != nil {
				return nil, fmt.Errorf("reading chunks: %w", err)
			}
			if reader.IsVirtualBin(header.ID) {
				continue
			}
			ref.bins[header.ID] = &bin{offset: bgzf.Address(header.Offset), chunks: chunks}
		}

		ref.offsets, err = reader.ReadLinearIndex(r)
		if err != nil {
			return nil, fmt.Errorf("reading linear index: %w", err)
		}
	}
	return idx, nil
}

// References returns the number of references described by the index.
func (idx *Index) References() int {
	return len(idx.references)
}

// Chunks returns the BGZF chunks holding all records that may overlap the
// specified region.  The chunks are neither sorted nor merged.
func (idx *Index) Chunks(region genomics.Region) []bgzf.Chunk {
	bins := binsForRange(region.Start, region.End, idx.minShift, idx.depth)
	whole := region.Start == 0 && region.End == 0

	var chunks []bgzf.Chunk
	for i := range idx.references {
		if region.ReferenceID >= 0 && int32(i) != region.ReferenceID {
			continue
		}
		ref := &idx.references[i]

		var firstReadOffset bgzf.Address
		if window := int(region.Start >> uint(idx.minShift)); window < len(ref.offsets) {
			firstReadOffset = bgzf.Address(ref.offsets[window])
		}

		include := func(b *bin) {
			for _, chunk := range b.chunks {
				if chunk.End < b.offset || chunk.End < firstReadOffset {
					continue
				}
				chunks = append(chunks, chunk)
			}
		}
		if whole {
			for _, b := range ref.bins {
				include(b)
			}
			continue
		}
		for _, id := range bins {
			if b, ok := ref.bins[id]; ok {
				include(b)
			}
		}
	}
	return chunks
}

func binsForRange(start, end uint32, minShift, depth int32) []uint32 {
	maxWidth := maximumBinWidth(minShift, depth)
	last := uint64(end)
	if last == 0 || last > maxWidth {
		last = maxWidth
	}
	if last <= uint64(start) {
		return nil
	}

	// This is derived from the C examples in the CSI index specification.
	last--
	var bins []uint32
	for l, t, s := uint(0), uint64(0), uint(minShift+depth*3); l <= uint(depth); l++ {
		b := t + (uint64(start) >> s)
		e := t + (last >> s)
		for i := b; i <= e; i++ {
			bins = append(bins, uint32(i))
		}
		s -= 3
		t += 1 << (l * 3)
	}
	return bins
}

func maximumBinWidth(minShift, depth int32) uint64 {
	return uint64(1) << uint(minShift+depth*3)
}

// MetadataBin returns the ID of the pseudo-bin that holds index metadata in a
// binning scheme of the given depth.
func MetadataBin(depth int32) uint32 {
	return uint32(((1<<(uint(depth+1)*3))-1)/7 + 1)
}
