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
	"errors"
	"fmt"
	"time"

	"github.com/googlegenomics/htscov/internal/depth"
	"github.com/googlegenomics/htscov/internal/genomics"
)

type intervalSlice struct {
	intervals []genomics.Interval
	current   genomics.Interval
	err       error
}

func (s *intervalSlice) Next() bool {
	if len(s.intervals) == 0 {
		return false
	}
	s.current, s.intervals = s.intervals[0], s.intervals[1:]
	return true
}

func (s *intervalSlice) Interval() genomics.Interval { return s.current }
func (s *intervalSlice) Err() error                  { return s.err }

func targetsOf(intervals ...genomics.Interval) Targets {
	return Extend(&intervalSlice{intervals: intervals}, Extender{})
}

func interval(contig string, start, end int) genomics.Interval {
	return genomics.Interval{Contig: contig, Start: start, End: end}
}

type query struct {
	contig     string
	start, end int
}

func (q query) String() string {
	return fmt.Sprintf("%s:%d-%d", q.contig, q.start, q.end)
}

// recordingSource records every query made against the wrapped source.
type recordingSource struct {
	source  depth.Source
	queries []query
}

func (s *recordingSource) Depth(contig string, start, end int) ([]int, error) {
	s.queries = append(s.queries, query{contig, start, end})
	return s.source.Depth(contig, start, end)
}

type failingSource struct{}

var errBroken = errors.New("broken source")

func (failingSource) Depth(string, int, int) ([]int, error) {
	return nil, errBroken
}

type shortSource struct{}

func (shortSource) Depth(_ string, start, end int) ([]int, error) {
	return make([]int, end-start-1), nil
}

type fakeObserver struct {
	queries []int
	results int
}

func (o *fakeObserver) ObserveQuery(_ string, span, _ int, _ time.Duration) {
	o.queries = append(o.queries, span)
}

func (o *fakeObserver) ObserveResult(Result) {
	o.results++
}
