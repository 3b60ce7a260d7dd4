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

// Package annotate computes coverage and completeness for genomic intervals.
//
// The pipeline is a chain of pull-based stages: BED records are parsed,
// extended, packed into groups of nearby intervals, the depth of each group
// is read with a single query, and the depth is sliced back out for each
// interval to compute its metrics.  Nothing runs ahead of the consumer: each
// call to Pipeline.Next does at most one depth query.
package annotate

import (
	"errors"
	"time"

	"github.com/googlegenomics/htscov/internal/genomics"
)

var (
	// ErrInvalidOption is wrapped by errors describing unusable options.
	ErrInvalidOption = errors.New("invalid option")
	// ErrInvertedInterval is returned when a negative extension would move
	// the start of an interval past its end.
	ErrInvertedInterval = errors.New("extension inverts interval")
	// ErrDepthLength is returned when a depth source answers with the wrong
	// number of values.
	ErrDepthLength = errors.New("depth length mismatch")
)

// Intervals is a stream of intervals, such as a *bed.Reader.
type Intervals interface {
	Next() bool
	Interval() genomics.Interval
	Err() error
}

// Target pairs an interval as it was read with its extended copy, which is
// the span used for depth queries and metrics.
type Target struct {
	Interval genomics.Interval
	Extended genomics.Interval
}

// Targets is a stream of targets.
type Targets interface {
	Next() bool
	Target() Target
	Err() error
}

// DepthSlice holds the per-base depth of a target's extended interval.
type DepthSlice struct {
	Target Target
	Depths []int
}

// Result is the output of the pipeline for one input interval.
type Result struct {
	// Interval is the extended interval the metrics were computed over.
	Interval genomics.Interval
	// Original is the interval as parsed.
	Original     genomics.Interval
	Coverage     float64
	Completeness float64
}

// Observer is notified of the work done by the pipeline.
type Observer interface {
	// ObserveQuery is called after each depth query.
	ObserveQuery(contig string, span, members int, elapsed time.Duration)
	// ObserveResult is called for each result handed to the consumer.
	ObserveResult(Result)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(string, int, int, time.Duration) {}
func (nopObserver) ObserveResult(Result)                         {}
