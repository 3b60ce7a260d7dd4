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

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// ErrMissingOrInvalidToken is returned when a request carries no usable
// bearer token.
var ErrMissingOrInvalidToken = errors.New("missing or invalid token")

// GCSClient serves objects from Cloud Storage.
type GCSClient struct {
	*gcs.Client
}

func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*gcs.ObjectHandle
}

func (h gcsObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return h.ObjectHandle.NewRangeReader(ctx, offset, length)
}

var (
	defaultClient     *gcs.Client
	defaultClientErr  error
	defaultClientOnce sync.Once
)

func sharedClient(opts ...option.ClientOption) (Client, error) {
	defaultClientOnce.Do(func() {
		defaultClient, defaultClientErr = gcs.NewClient(context.Background(), opts...)
	})
	if defaultClientErr != nil {
		return nil, fmt.Errorf("creating storage client: %w", defaultClientErr)
	}
	return GCSClient{defaultClient}, nil
}

// NewDefaultClient returns a client using application default credentials.
// The client is shared by every caller.
func NewDefaultClient(context.Context) (Client, error) {
	return sharedClient()
}

// NewPublicClient returns a client for publicly readable buckets.  Like
// NewDefaultClient it shares one underlying client, so a process should use
// only one of the two.
func NewPublicClient(context.Context) (Client, error) {
	return sharedClient(option.WithHTTPClient(http.DefaultClient))
}

// NewClientFromBearerToken returns a client that reads with the bearer token
// of req.
func NewClientFromBearerToken(req *http.Request) (Client, error) {
	token, err := BearerToken(req)
	if err != nil {
		return nil, err
	}
	client, err := gcs.NewClient(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("creating client with token source: %w", err)
	}
	return GCSClient{client}, nil
}

// BearerToken extracts the OAuth2 token from the Authorization header of
// req.
func BearerToken(req *http.Request) (*oauth2.Token, error) {
	fields := strings.Split(req.Header.Get("Authorization"), " ")
	if len(fields) != 2 || fields[0] != "Bearer" || fields[1] == "" {
		return nil, ErrMissingOrInvalidToken
	}
	return &oauth2.Token{TokenType: fields[0], AccessToken: fields[1]}, nil
}
