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
	"fmt"

	"github.com/googlegenomics/htscov/internal/genomics"
)

// Extender pads intervals on both sides.
type Extender struct {
	// Extension is the number of bases added before the start and after the
	// end.  Negative values shrink the interval.
	Extension int
}

// Extend returns a copy of interval with start max(0, start-Extension) and
// end end+Extension.
func (e Extender) Extend(interval genomics.Interval) (genomics.Interval, error) {
	extended := interval
	extended.Start = max(0, interval.Start-e.Extension)
	extended.End = interval.End + e.Extension
	if extended.Start > extended.End {
		return genomics.Interval{}, fmt.Errorf("%s extended by %d: %w", interval, e.Extension, ErrInvertedInterval)
	}
	return extended, nil
}

type extendedTargets struct {
	upstream Intervals
	extender Extender
	target   Target
	err      error
}

// Extend returns a stream of targets pairing each upstream interval with its
// extension.
func Extend(upstream Intervals, extender Extender) Targets {
	return &extendedTargets{upstream: upstream, extender: extender}
}

func (t *extendedTargets) Next() bool {
	if t.err != nil || !t.upstream.Next() {
		return false
	}
	interval := t.upstream.Interval()
	extended, err := t.extender.Extend(interval)
	if err != nil {
		t.err = err
		return false
	}
	t.target = Target{Interval: interval, Extended: extended}
	return true
}

func (t *extendedTargets) Target() Target {
	return t.target
}

func (t *extendedTargets) Err() error {
	if t.err != nil {
		return t.err
	}
	return t.upstream.Err()
}
