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
	"time"

	"go.uber.org/zap"

	"github.com/googlegenomics/htscov/internal/depth"
)

// Retriever reads the depth of a group with one query and slices it per
// target.
type Retriever struct {
	source   depth.Source
	logger   *zap.Logger
	observer Observer
}

// NewRetriever returns a Retriever querying source.  A nil logger or
// observer disables logging or observation.
func NewRetriever(source depth.Source, logger *zap.Logger, observer Observer) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Retriever{source: source, logger: logger, observer: observer}
}

// Retrieve returns one DepthSlice per target of g, in the order of the
// targets.  The slices share one buffer.  A group whose union span is empty
// is answered without a query.
func (r *Retriever) Retrieve(g Group) ([]DepthSlice, error) {
	var depths []int
	if span := g.Span(); span > 0 {
		began := time.Now()
		var err error
		depths, err = r.source.Depth(g.Contig, g.Start, g.End)
		if err != nil {
			return nil, fmt.Errorf("reading depth for %s: %w", g.Region(), err)
		}
		if len(depths) != span {
			return nil, fmt.Errorf("reading depth for %s: got %d values, want %d: %w", g.Region(), len(depths), span, ErrDepthLength)
		}
		elapsed := time.Since(began)
		r.observer.ObserveQuery(g.Contig, span, len(g.Targets), elapsed)
		r.logger.Debug("Read depth",
			zap.Stringer("region", g.Region()),
			zap.Int("targets", len(g.Targets)),
			zap.Duration("elapsed", elapsed))
	}

	slices := make([]DepthSlice, len(g.Targets))
	for i, target := range g.Targets {
		interval := target.Extended
		slices[i] = DepthSlice{
			Target: target,
			Depths: depths[interval.Start-g.Start : interval.End-g.Start],
		}
	}
	return slices, nil
}
