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

	"github.com/gin-gonic/gin"
	"google.golang.org/api/googleapi"

	"github.com/googlegenomics/htscov/internal/annotate"
	"github.com/googlegenomics/htscov/internal/bed"
	"github.com/googlegenomics/htscov/internal/depth"
	"github.com/googlegenomics/htscov/internal/storage"
)

var errInvalidID = errors.New("invalid or unspecified ID")

type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func (err *apiError) Unwrap() error {
	return err.cause
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %w", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newAPIError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newAPIError("PermissionDenied", http.StatusForbidden, context, err)
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

func newStorageError(context string, err error) error {
	if errors.Is(err, storage.ErrMissingOrInvalidToken) {
		return newPermissionDeniedError(context, err)
	}
	if storage.IsNotFound(err) {
		return newNotFoundError(context, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		}
	}
	return fmt.Errorf("%s: %w", context, err)
}

// newPipelineError classifies an error returned while annotating the
// request body.
func newPipelineError(err error) error {
	var parseErr *bed.ParseError
	switch {
	case errors.As(err, &parseErr), errors.Is(err, annotate.ErrInvertedInterval):
		return newInvalidInputError("parsing intervals", err)
	case errors.Is(err, depth.ErrUnknownContig), errors.Is(err, depth.ErrOutOfRange):
		return newInvalidRangeError(err)
	}
	return err
}

func writeError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.code, gin.H{
			"error":   apiErr.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(apiErr.code), apiErr.cause),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "InternalError",
		"message": fmt.Sprintf("%s: %v", http.StatusText(http.StatusInternalServerError), err),
	})
}
