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

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/htscov/internal/annotate"
)

var _ annotate.Observer = (*Collector)(nil)

func TestCollector(t *testing.T) {
	c := New()
	c.ObserveQuery("chr1", 100, 3, 5*time.Millisecond)
	c.ObserveQuery("chr1", 50, 1, time.Millisecond)
	c.ObserveQuery("chr2", 10, 2, time.Millisecond)
	c.ObserveResult(annotate.Result{Completeness: 1})
	c.ObserveResult(annotate.Result{Completeness: 0.5})
	c.ObserveRequest("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.IntervalsAnnotated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IncompleteTargets))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DepthQueries.WithLabelValues("chr1")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.BasesQueried.WithLabelValues("chr1")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.BasesQueried.WithLabelValues("chr2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Requests.WithLabelValues("ok")))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveResult(annotate.Result{Completeness: 1})

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "htscov_intervals_annotated_total 1")
}
