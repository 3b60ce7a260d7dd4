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

package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/googlegenomics/htscov/internal/bed"
	"github.com/googlegenomics/htscov/internal/depth"
	"github.com/googlegenomics/htscov/internal/storage"
)

func TestNewStorageError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"token", storage.ErrMissingOrInvalidToken, "PermissionDenied"},
		{"missing file", fmt.Errorf("opening: %w", os.ErrNotExist), "NotFound"},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, "InvalidAuthentication"},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, "PermissionDenied"},
		{"other", errors.New("boom"), ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := newStorageError("opening data", tc.err)
			var apiErr *apiError
			if tc.want == "" {
				assert.False(t, errors.As(err, &apiErr))
				assert.True(t, errors.Is(err, tc.err))
				return
			}
			if assert.True(t, errors.As(err, &apiErr)) {
				assert.Equal(t, tc.want, apiErr.name)
			}
		})
	}
}

func TestNewPipelineError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"parse", &bed.ParseError{Line: 1, Err: bed.ErrTooFewFields}, http.StatusBadRequest},
		{"unknown contig", fmt.Errorf("reading depth: %w", depth.ErrUnknownContig), http.StatusBadRequest},
		{"out of range", fmt.Errorf("reading depth: %w", depth.ErrOutOfRange), http.StatusBadRequest},
		{"other", errors.New("disk on fire"), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr *apiError
			ok := errors.As(newPipelineError(tc.err), &apiErr)
			if tc.wantCode == 0 {
				assert.False(t, ok)
				return
			}
			if assert.True(t, ok) {
				assert.Equal(t, tc.wantCode, apiErr.code)
			}
		})
	}
}
