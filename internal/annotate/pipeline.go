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
	"io"

	"go.uber.org/zap"

	"github.com/googlegenomics/htscov/internal/bed"
	"github.com/googlegenomics/htscov/internal/depth"
)

// Default option values.
const (
	DefaultCutoff      = 10
	DefaultExtension   = 0
	DefaultBPThreshold = 17000
)

// Options configures a Pipeline.
type Options struct {
	// Cutoff is the minimum depth counted towards completeness.
	Cutoff int
	// Extension pads every interval on both sides before grouping.
	Extension int
	// ContigPrepend is prefixed to every contig name read from the input.
	ContigPrepend string
	// BPThreshold bounds the union span of a group of intervals read with
	// one depth query.
	BPThreshold int

	Logger   *zap.Logger
	Observer Observer
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Cutoff:      DefaultCutoff,
		Extension:   DefaultExtension,
		BPThreshold: DefaultBPThreshold,
	}
}

// Validate checks the options before any record is processed.
func (o Options) Validate() error {
	if o.BPThreshold <= 0 {
		return fmt.Errorf("bp_threshold must be positive, got %d: %w", o.BPThreshold, ErrInvalidOption)
	}
	if o.Cutoff < 0 {
		return fmt.Errorf("cutoff must not be negative, got %d: %w", o.Cutoff, ErrInvalidOption)
	}
	return nil
}

// Pipeline turns a stream of intervals into a stream of results, in input
// order.  Use it like a bufio.Scanner:
//
//	p, err := annotate.New(bedFile, source, annotate.DefaultOptions())
//	...
//	for p.Next() {
//		result := p.Result()
//	}
//	if err := p.Err(); err != nil {
//		...
//	}
type Pipeline struct {
	groups     *Grouper
	retriever  *Retriever
	calculator Calculator
	observer   Observer

	pending []DepthSlice
	result  Result
	err     error
}

// New returns a Pipeline annotating the BED records read from records with
// depth from source.
func New(records io.Reader, source depth.Source, opts Options) (*Pipeline, error) {
	return NewFromIntervals(bed.NewReader(records, bed.Parser{ContigPrepend: opts.ContigPrepend}), source, opts)
}

// NewFromIntervals returns a Pipeline annotating already parsed intervals.
// opts.ContigPrepend is not applied.
func NewFromIntervals(intervals Intervals, source depth.Source, opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	groups, err := NewGrouper(Extend(intervals, Extender{Extension: opts.Extension}), opts.BPThreshold)
	if err != nil {
		return nil, err
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Pipeline{
		groups:     groups,
		retriever:  NewRetriever(source, opts.Logger, observer),
		calculator: Calculator{Cutoff: opts.Cutoff},
		observer:   observer,
	}, nil
}

// Next computes the next result.  It returns false when the input is
// exhausted or an error occurred.
func (p *Pipeline) Next() bool {
	if p.err != nil {
		return false
	}
	for len(p.pending) == 0 {
		if !p.groups.Next() {
			p.err = p.groups.Err()
			return false
		}
		slices, err := p.retriever.Retrieve(p.groups.Group())
		if err != nil {
			p.err = err
			return false
		}
		p.pending = slices
	}

	p.result = p.calculator.Calculate(p.pending[0])
	p.pending[0] = DepthSlice{}
	p.pending = p.pending[1:]
	p.observer.ObserveResult(p.result)
	return true
}

// Result returns the result computed by the last call to Next.
func (p *Pipeline) Result() Result {
	return p.result
}

// Err returns the first error encountered by the pipeline.
func (p *Pipeline) Err() error {
	return p.err
}
