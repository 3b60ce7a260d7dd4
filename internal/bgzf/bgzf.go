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

// Package bgzf describes locations inside BGZF compressed alignment files.
package bgzf

import (
	"fmt"
	"sort"
	"strconv"
)

const (
	// LastAddress is the maximum valid BGZF address.
	LastAddress = Address(0xffffffffffffffff)

	// MaximumBlockSize is the maximum BGZF block size.
	MaximumBlockSize = 65536

	// NoSizeLimit disables the size bound in Merge so that every pair of
	// intersecting chunks is joined.
	NoSizeLimit = ^uint64(0)
)

// Address stores a BGZF "virtual address".  The lower 16 bits store the data
// offset inside the uncompressed stream and upper 48 bits store the block
// offset inside the compressed archive set.
type Address uint64

// NewAddress returns a new Address with the provided offsets.
func NewAddress(blockOffset uint64, dataOffset uint16) Address {
	return Address(blockOffset<<16 | uint64(dataOffset))
}

// BlockOffset returns the offset to the start of the compressed block.
func (v Address) BlockOffset() uint64 {
	return uint64(v >> 16)
}

// DataOffset returns the offset to the data in the uncompressed block.
func (v Address) DataOffset() uint16 {
	return uint16(v & 0xffff)
}

// String returns a representation of v that can be parsed with ParseAddress.
func (v Address) String() string {
	return strconv.FormatUint(uint64(v), 16)
}

// ParseAddress attempts to parse input into an Address.
func ParseAddress(input string) (Address, error) {
	v, err := strconv.ParseUint(input, 16, 64)
	return Address(v), err
}

// Chunk specifies a region from Start to End inside a BGZF file.
type Chunk struct {
	Start, End Address
}

// String returns a human readable description of the receiver.
func (v Chunk) String() string {
	return fmt.Sprintf("[%s-%s]", v.Start, v.End)
}

// Merge sorts input by start address and joins intersecting chunks.  Two
// chunks are not joined if their combined size could exceed sizeLimit bytes
// of compressed data.  The input slice is reordered in place.
func Merge(input []Chunk, sizeLimit uint64) []Chunk {
	if len(input) == 0 {
		return nil
	}
	sort.Slice(input, func(i, j int) bool {
		return input[i].Start < input[j].Start
	})

	merged := []Chunk{input[0]}
	for _, next := range input[1:] {
		output := &merged[len(merged)-1]

		var size uint64
		if next.End.BlockOffset() == output.Start.BlockOffset() {
			size = uint64(next.End.DataOffset() - output.Start.DataOffset())
		} else {
			// Estimate using the maximum size for the last block.
			size = next.End.BlockOffset() - output.Start.BlockOffset() + MaximumBlockSize
		}

		if next.Start <= output.End && size <= sizeLimit {
			if output.End < next.End {
				output.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}
