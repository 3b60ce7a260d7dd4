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

// Group is a run of targets on one contig whose extended intervals are read
// with a single depth query over [Start, End).
type Group struct {
	Contig     string
	Start, End int
	Targets    []Target
}

// Span returns the number of bases covered by the union span of the group.
func (g Group) Span() int {
	return g.End - g.Start
}

// Region returns the union span of the group as an interval.
func (g Group) Region() genomics.Interval {
	return genomics.Interval{Contig: g.Contig, Start: g.Start, End: g.End}
}

func (g *Group) accepts(target Target, bpThreshold int) bool {
	if len(g.Targets) == 0 {
		return true
	}
	interval := target.Extended
	return interval.Contig == g.Contig &&
		max(g.End, interval.End)-min(g.Start, interval.Start) <= bpThreshold
}

func (g *Group) add(target Target) {
	interval := target.Extended
	if len(g.Targets) == 0 {
		g.Contig, g.Start, g.End = interval.Contig, interval.Start, interval.End
	} else {
		g.Start = min(g.Start, interval.Start)
		g.End = max(g.End, interval.End)
	}
	g.Targets = append(g.Targets, target)
}

// Grouper packs consecutive targets into groups whose union span does not
// exceed a threshold.  It makes a single forward pass and expects targets in
// contig-major, position-ascending order; unsorted input is not reordered and
// only yields more, smaller groups.  A target longer than the threshold forms
// a group of its own.
type Grouper struct {
	upstream    Targets
	bpThreshold int

	pending    Target
	hasPending bool
	group      Group
	done       bool
	err        error
}

// NewGrouper returns a Grouper reading from upstream.  bpThreshold must be
// positive.
func NewGrouper(upstream Targets, bpThreshold int) (*Grouper, error) {
	if bpThreshold <= 0 {
		return nil, fmt.Errorf("bp_threshold must be positive, got %d: %w", bpThreshold, ErrInvalidOption)
	}
	return &Grouper{upstream: upstream, bpThreshold: bpThreshold}, nil
}

// Next advances to the next group.  It returns false at the end of the input
// or after an error.
func (g *Grouper) Next() bool {
	if g.done || g.err != nil {
		return false
	}

	var group Group
	if g.hasPending {
		group.add(g.pending)
		g.hasPending = false
	}
	for g.upstream.Next() {
		target := g.upstream.Target()
		if group.accepts(target, g.bpThreshold) {
			group.add(target)
			continue
		}
		g.pending, g.hasPending = target, true
		g.group = group
		return true
	}
	if err := g.upstream.Err(); err != nil {
		g.err = err
		return false
	}

	g.done = true
	if len(group.Targets) == 0 {
		return false
	}
	g.group = group
	return true
}

// Group returns the group produced by the last call to Next.
func (g *Grouper) Group() Group {
	return g.group
}

// Err returns the first error encountered by the Grouper or its upstream.
func (g *Grouper) Err() error {
	return g.err
}
