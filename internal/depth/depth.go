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

// Package depth defines sources of per-base read depth.
//
// Every Source treats missing data as an error: a contig the source does not
// know yields ErrUnknownContig and a span reaching past the end of a contig
// yields ErrOutOfRange.  Positions inside a contig without aligned reads have
// a depth of zero.
package depth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownContig is returned when a query names a contig the source has
	// no data for.
	ErrUnknownContig = errors.New("unknown contig")
	// ErrOutOfRange is returned when a query span is not inside the contig.
	ErrOutOfRange = errors.New("span out of range")
)

// Source provides per-base read depth.
type Source interface {
	// Depth returns one value per base of [start, end) on contig.
	Depth(contig string, start, end int) ([]int, error)
}

// Memory is a Source backed by in-memory depth arrays indexed from position
// zero of each contig.
type Memory map[string][]int

// Depth returns a copy of the depths in [start, end).
func (m Memory) Depth(contig string, start, end int) ([]int, error) {
	depths, ok := m[contig]
	if !ok {
		return nil, fmt.Errorf("%q: %w", contig, ErrUnknownContig)
	}
	if err := checkSpan(contig, start, end, len(depths)); err != nil {
		return nil, err
	}
	return append([]int(nil), depths[start:end]...), nil
}

func checkSpan(contig string, start, end, length int) error {
	if start < 0 || start > end || end > length {
		return fmt.Errorf("%s:%d-%d (length %d): %w", contig, start, end, length, ErrOutOfRange)
	}
	return nil
}
