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

package depth

import (
	"bytes"
	"errors"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/htscov/internal/depth/depthtest"
)

func TestMemory_Depth(t *testing.T) {
	source := Memory{"chr1": {0, 1, 2, 3, 4, 5}}

	got, err := source.Depth("chr1", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, got)

	got[0] = 100
	again, err := source.Depth("chr1", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, again[0], "Depth() must not expose the backing array")

	empty, err := source.Depth("chr1", 3, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemory_MissingData(t *testing.T) {
	source := Memory{"chr1": make([]int, 10)}
	testCases := []struct {
		name       string
		contig     string
		start, end int
		want       error
	}{
		{"unknown contig", "chr2", 0, 5, ErrUnknownContig},
		{"past contig end", "chr1", 5, 11, ErrOutOfRange},
		{"wholly outside", "chr1", 20, 30, ErrOutOfRange},
		{"negative start", "chr1", -1, 5, ErrOutOfRange},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := source.Depth(tc.contig, tc.start, tc.end)
			assert.True(t, errors.Is(err, tc.want), "got error %v, want %v", err, tc.want)
		})
	}
}

func openTestBAM(t *testing.T) *BAM {
	t.Helper()

	data, bai, err := depthtest.Build(
		[]depthtest.Contig{{Name: "chr1", Length: 1000}, {Name: "chr2", Length: 500}},
		[]depthtest.Read{
			{Contig: "chr1", Pos: 10, Cigar: "10M"},
			{Contig: "chr1", Pos: 15, Cigar: "5M2D5M"},
			{Contig: "chr1", Pos: 15, Cigar: "10M", Flags: sam.Duplicate},
			{Contig: "chr1", Pos: 17, Cigar: "4M", Flags: sam.Secondary},
			{Contig: "chr1", Pos: 100, Cigar: "3S5M"},
			{Contig: "chr1", Pos: 200, Cigar: "2M50N2M"},
			{Contig: "chr2", Pos: 50, Cigar: "5=1X4="},
		})
	require.NoError(t, err)

	idx, err := LoadIndex(bytes.NewReader(bai))
	require.NoError(t, err)

	source, err := NewBAM(bytes.NewReader(data), idx)
	require.NoError(t, err)
	t.Cleanup(func() { source.Close() })
	return source
}

func TestBAM_Depth(t *testing.T) {
	testCases := []struct {
		name       string
		contig     string
		start, end int
		want       []int
	}{
		{"overlapping reads with deletion", "chr1", 10, 30, []int{
			1, 1, 1, 1, 1, // 10-14: first read only
			2, 2, 2, 2, 2, // 15-19: both primary reads
			0, 0,          // 20-21: deletion
			1, 1, 1, 1, 1, // 22-26
			0, 0, 0,
		}},
		{"soft clip does not count", "chr1", 98, 106, []int{0, 0, 1, 1, 1, 1, 1, 0}},
		{"skipped region", "chr1", 200, 256, append(append([]int{1, 1}, make([]int, 50)...), 1, 1, 0, 0)},
		{"no reads", "chr1", 500, 510, make([]int, 10)},
		{"second contig", "chr2", 48, 62, []int{0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0}},
		{"empty span", "chr1", 10, 10, []int{}},
	}
	source := openTestBAM(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := source.Depth(tc.contig, tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBAM_BatchedQueryMatchesSingleQueries(t *testing.T) {
	source := openTestBAM(t)

	whole, err := source.Depth("chr1", 0, 300)
	require.NoError(t, err)
	for _, span := range [][2]int{{5, 12}, {14, 23}, {99, 104}, {198, 260}} {
		part, err := source.Depth("chr1", span[0], span[1])
		require.NoError(t, err)
		assert.Equal(t, whole[span[0]:span[1]], part, "span %v", span)
	}
}

func TestBAM_MissingData(t *testing.T) {
	source := openTestBAM(t)

	_, err := source.Depth("chrM", 0, 10)
	assert.True(t, errors.Is(err, ErrUnknownContig), "got %v", err)

	_, err = source.Depth("chr2", 490, 510)
	assert.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)
}

func TestBAM_ExcludeFlags(t *testing.T) {
	source := openTestBAM(t)
	source.ExcludeFlags = 0

	got, err := source.Depth("chr1", 15, 20)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 4, 4, 4}, got)
}

func TestLoadIndex_Errors(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("BA"), []byte("TBI\x01\x00\x00")} {
		if _, err := LoadIndex(bytes.NewReader(data)); err == nil {
			t.Errorf("LoadIndex(%q): expected error, not success", data)
		}
	}
}

func TestBAM_ContigAliases(t *testing.T) {
	data, bai, err := depthtest.Build(
		[]depthtest.Contig{{Name: "chr1", Length: 100, Aliases: []string{"1", "NC_000001.11"}}},
		[]depthtest.Read{{Contig: "chr1", Pos: 10, Cigar: "5M"}})
	require.NoError(t, err)
	idx, err := LoadIndex(bytes.NewReader(bai))
	require.NoError(t, err)
	source, err := NewBAM(bytes.NewReader(data), idx)
	require.NoError(t, err)
	defer source.Close()

	want := []int{0, 1, 1, 1, 1, 1, 0}
	for _, contig := range []string{"chr1", "1", "NC_000001.11"} {
		got, err := source.Depth(contig, 9, 16)
		require.NoError(t, err, contig)
		assert.Equal(t, want, got, contig)
	}
	_, err = source.Depth("2", 9, 16)
	assert.True(t, errors.Is(err, ErrUnknownContig))
}

func TestReadHeaderText(t *testing.T) {
	data, _, err := depthtest.Build(
		[]depthtest.Contig{
			{Name: "chr1", Length: 100, Aliases: []string{"1", "NC_000001.11"}},
			{Name: "chr2", Length: 50},
		},
		[]depthtest.Read{{Contig: "chr2", Pos: 3, Cigar: "4M"}})
	require.NoError(t, err)

	r := bytes.NewReader(data)
	text, err := readHeaderText(r)
	require.NoError(t, err)
	assert.Contains(t, string(text), "@SQ\tSN:chr1\tLN:100\tAN:1,NC_000001.11\n")
	assert.Contains(t, string(text), "@SQ\tSN:chr2\tLN:50\n")
	assert.Equal(t, int64(len(data)), int64(r.Len()), "reader not rewound")

	_, err = readHeaderText(bytes.NewReader([]byte("not a bam file")))
	assert.Error(t, err)
}
