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

package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/googlegenomics/htscov/internal/bed"
	"github.com/googlegenomics/htscov/internal/depth"
	"github.com/googlegenomics/htscov/internal/depth/depthtest"
	"github.com/googlegenomics/htscov/internal/genomics"
)

func run(t *testing.T, records string, source depth.Source, opts Options) []Result {
	t.Helper()
	p, err := New(strings.NewReader(records), source, opts)
	require.NoError(t, err)

	var results []Result
	for p.Next() {
		results = append(results, p.Result())
	}
	require.NoError(t, p.Err())
	return results
}

func TestPipeline_HalfComplete(t *testing.T) {
	data := make([]int, 100)
	copy(data[10:20], []int{5, 5, 5, 5, 5, 15, 15, 15, 15, 15})
	source := &recordingSource{source: depth.Memory{"chr1": data}}

	opts := DefaultOptions()
	results := run(t, "chr1\t10\t20\n", source, opts)

	require.Len(t, results, 1)
	assert.Equal(t, 10.0, results[0].Coverage)
	assert.Equal(t, 0.5, results[0].Completeness)
	assert.Equal(t, []query{{"chr1", 10, 20}}, source.queries)
}

func TestPipeline_ExtensionWidensQuery(t *testing.T) {
	source := &recordingSource{source: depth.Memory{"chr1": make([]int, 100)}}

	opts := DefaultOptions()
	opts.Extension = 5
	results := run(t, "chr1\t10\t20\n", source, opts)

	require.Len(t, results, 1)
	assert.Equal(t, []query{{"chr1", 5, 25}}, source.queries)
	assert.Equal(t, interval("chr1", 5, 25), results[0].Interval)
	assert.Equal(t, interval("chr1", 10, 20), results[0].Original)
	assert.Equal(t, 20, results[0].Interval.Length())
	assert.Equal(t, 0.0, results[0].Coverage)
	assert.Equal(t, 0.0, results[0].Completeness)
}

func TestPipeline_ContigPrepend(t *testing.T) {
	source := depth.Memory{"chr1": make([]int, 100)}

	opts := DefaultOptions()
	opts.ContigPrepend = "chr"
	results := run(t, "1\t10\t20\tfirst\n", source, opts)

	require.Len(t, results, 1)
	assert.Equal(t, genomics.Interval{Contig: "chr1", Start: 10, End: 20, Name: "first"}, results[0].Original)
}

// randomRecords returns sorted BED records over two contigs with their
// parsed intervals.
func randomRecords(rng *rand.Rand, n int) (string, []genomics.Interval) {
	var (
		lines     []string
		intervals []genomics.Interval
	)
	for _, contig := range []string{"chr1", "chr2"} {
		position := 0
		for i := 0; i < n; i++ {
			position += rng.Intn(400)
			length := rng.Intn(300)
			if position+length >= 20000 {
				break
			}
			lines = append(lines, fmt.Sprintf("%s\t%d\t%d\tt%d", contig, position, position+length, len(lines)))
			intervals = append(intervals, genomics.Interval{Contig: contig, Start: position, End: position + length, Name: fmt.Sprintf("t%d", len(intervals))})
		}
	}
	return strings.Join(lines, "\n"), intervals
}

func randomDepths(rng *rand.Rand) depth.Memory {
	source := depth.Memory{}
	for _, contig := range []string{"chr1", "chr2"} {
		depths := make([]int, 20100)
		for i := range depths {
			depths[i] = rng.Intn(30)
		}
		source[contig] = depths
	}
	return source
}

func TestPipeline_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	records, intervals := randomRecords(rng, 80)
	source := randomDepths(rng)

	for _, extension := range []int{0, 7, 50} {
		for _, cutoff := range []int{0, 10, 25} {
			t.Run(fmt.Sprintf("extension %d, cutoff %d", extension, cutoff), func(t *testing.T) {
				opts := DefaultOptions()
				opts.Extension = extension
				opts.Cutoff = cutoff
				results := run(t, records, source, opts)
				require.Len(t, results, len(intervals))

				extender := Extender{Extension: extension}
				for i, result := range results {
					want, err := extender.Extend(intervals[i])
					require.NoError(t, err)
					assert.Equal(t, want, result.Interval, "result %d out of order", i)
					assert.Equal(t, intervals[i], result.Original)

					assert.GreaterOrEqual(t, result.Completeness, 0.0)
					assert.LessOrEqual(t, result.Completeness, 1.0)
					if cutoff == 0 && result.Interval.Length() > 0 {
						assert.Equal(t, 1.0, result.Completeness)
					}
				}
			})
		}
	}
}

func TestPipeline_BatchingIsInvisible(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	records, _ := randomRecords(rng, 60)
	source := randomDepths(rng)

	batched := &recordingSource{source: source}
	opts := DefaultOptions()
	opts.Extension = 10
	opts.BPThreshold = 17000
	large := run(t, records, batched, opts)

	isolated := &recordingSource{source: source}
	opts.BPThreshold = 1
	single := run(t, records, isolated, opts)

	require.Equal(t, len(large), len(single))
	assert.Less(t, len(batched.queries), len(isolated.queries))
	for i := range large {
		assert.Equal(t, single[i], large[i], "result %d", i)
	}
}

func TestPipeline_OneQueryPerGroup(t *testing.T) {
	source := &recordingSource{source: depth.Memory{"chr1": make([]int, 1000), "chr2": make([]int, 1000)}}
	records := "chr1\t0\t10\nchr1\t20\t30\nchr1\t500\t510\nchr2\t0\t10\n"

	opts := DefaultOptions()
	opts.BPThreshold = 100
	observer := &fakeObserver{}
	opts.Observer = observer
	opts.Logger = zaptest.NewLogger(t)
	results := run(t, records, source, opts)

	assert.Len(t, results, 4)
	assert.Equal(t, []query{{"chr1", 0, 30}, {"chr1", 500, 510}, {"chr2", 0, 10}}, source.queries)
	assert.Equal(t, []int{30, 10, 10}, observer.queries)
	assert.Equal(t, 4, observer.results)
}

func TestPipeline_IsLazy(t *testing.T) {
	source := &recordingSource{source: depth.Memory{"chr1": make([]int, 1000)}}
	records := "chr1\t0\t10\nchr1\t500\t510\nchr1\t900\t910\n"

	opts := DefaultOptions()
	opts.BPThreshold = 100
	p, err := New(strings.NewReader(records), source, opts)
	require.NoError(t, err)
	assert.Empty(t, source.queries, "New() must not query the source")

	require.True(t, p.Next())
	assert.Len(t, source.queries, 1)
	require.True(t, p.Next())
	assert.Len(t, source.queries, 2)
}

func TestPipeline_ZeroLengthInterval(t *testing.T) {
	results := run(t, "chr1\t10\t10\n", depth.Memory{"chr1": make([]int, 100)}, DefaultOptions())
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Coverage)
	assert.Equal(t, 0.0, results[0].Completeness)
}

func TestPipeline_MissingDataFails(t *testing.T) {
	testCases := []struct {
		name    string
		records string
		want    error
	}{
		{"unknown contig", "chr1\t10\t20\nchrUn\t10\t20\n", depth.ErrUnknownContig},
		{"past contig end", "chr1\t90\t120\n", depth.ErrOutOfRange},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.BPThreshold = 5
			p, err := New(strings.NewReader(tc.records), depth.Memory{"chr1": make([]int, 100)}, opts)
			require.NoError(t, err)
			for p.Next() {
			}
			assert.True(t, errors.Is(p.Err(), tc.want), "got %v", p.Err())
			assert.False(t, p.Next())
		})
	}
}

func TestPipeline_MalformedRecordFails(t *testing.T) {
	p, err := New(strings.NewReader("chr1\t10\t20\nchr1\t30\n"), depth.Memory{"chr1": make([]int, 100)}, DefaultOptions())
	require.NoError(t, err)
	for p.Next() {
	}
	var parseErr *bed.ParseError
	require.True(t, errors.As(p.Err(), &parseErr), "got %v", p.Err())
	assert.Equal(t, 2, parseErr.Line)
}

func TestNew_InvalidOptions(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Options)
	}{
		{"zero threshold", func(o *Options) { o.BPThreshold = 0 }},
		{"negative threshold", func(o *Options) { o.BPThreshold = -5 }},
		{"negative cutoff", func(o *Options) { o.Cutoff = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.modify(&opts)
			_, err := New(strings.NewReader(""), depth.Memory{}, opts)
			assert.True(t, errors.Is(err, ErrInvalidOption), "got %v", err)
		})
	}
}

func TestPipeline_BAM(t *testing.T) {
	data, bai, err := depthtest.Build(
		[]depthtest.Contig{{Name: "chr1", Length: 1000}},
		[]depthtest.Read{
			{Contig: "chr1", Pos: 10, Cigar: "10M"},
			{Contig: "chr1", Pos: 10, Cigar: "10M"},
			{Contig: "chr1", Pos: 20, Cigar: "5M"},
		})
	require.NoError(t, err)
	idx, err := depth.LoadIndex(bytes.NewReader(bai))
	require.NoError(t, err)
	source, err := depth.NewBAM(bytes.NewReader(data), idx)
	require.NoError(t, err)
	defer source.Close()

	opts := DefaultOptions()
	opts.Cutoff = 2
	results := run(t, "chr1\t10\t20\tfirst\nchr1\t15\t25\tsecond\n", source, opts)

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Original.Name)
	assert.Equal(t, 2.0, results[0].Coverage)
	assert.Equal(t, 1.0, results[0].Completeness)
	assert.Equal(t, "second", results[1].Original.Name)
	assert.Equal(t, 1.5, results[1].Coverage)
	assert.Equal(t, 0.5, results[1].Completeness)
}
