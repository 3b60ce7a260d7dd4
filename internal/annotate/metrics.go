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

// Calculator reduces depth slices to coverage and completeness.
type Calculator struct {
	// Cutoff is the minimum depth counted towards completeness.
	Cutoff int
}

// Calculate returns the mean depth of s and the fraction of its bases with a
// depth of at least Cutoff.  Both are zero for an empty interval.
func (c Calculator) Calculate(s DepthSlice) Result {
	result := Result{Interval: s.Target.Extended, Original: s.Target.Interval}
	if len(s.Depths) == 0 {
		return result
	}

	var sum, passed int
	for _, d := range s.Depths {
		sum += d
		if d >= c.Cutoff {
			passed++
		}
	}
	result.Coverage = float64(sum) / float64(len(s.Depths))
	result.Completeness = float64(passed) / float64(len(s.Depths))
	return result
}
