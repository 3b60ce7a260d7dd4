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

package genomics

import "fmt"

// Interval is a named, half-open range [Start, End) on a contig using 0-based
// coordinates.  Intervals are values: operations that change the bounds
// return a new Interval.
type Interval struct {
	Contig     string
	Start, End int
	// Name is optional and is carried through unchanged.
	Name string
}

// NewInterval returns an Interval after checking that 0 <= start <= end.
func NewInterval(contig string, start, end int, name string) (Interval, error) {
	if start < 0 {
		return Interval{}, fmt.Errorf("negative start %d", start)
	}
	if start > end {
		return Interval{}, fmt.Errorf("start %d > end %d", start, end)
	}
	return Interval{Contig: contig, Start: start, End: end, Name: name}, nil
}

// Length returns the number of bases covered by the interval.
func (i Interval) Length() int {
	return i.End - i.Start
}

// Contains reports whether other lies entirely inside i.
func (i Interval) Contains(other Interval) bool {
	return i.Contig == other.Contig && i.Start <= other.Start && other.End <= i.End
}

// String returns the interval in the conventional contig:start-end form.
func (i Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", i.Contig, i.Start, i.End)
}
