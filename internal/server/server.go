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

// Package server exposes the coverage pipeline over HTTP.
//
// A request posts BED records to /coverage/<id> and receives one JSON object
// per record, in input order, computed against <id>.bam.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/googlegenomics/htscov/internal/annotate"
	"github.com/googlegenomics/htscov/internal/config"
	"github.com/googlegenomics/htscov/internal/depth"
	"github.com/googlegenomics/htscov/internal/index"
	"github.com/googlegenomics/htscov/internal/metrics"
	"github.com/googlegenomics/htscov/internal/report"
	"github.com/googlegenomics/htscov/internal/storage"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"

	// flushInterval is the number of results written between flushes of
	// the response.
	flushInterval = 64
)

// NewStorageClientFunc returns the storage client used to serve req.
type NewStorageClientFunc func(req *http.Request) (storage.Client, error)

// Server serves coverage requests.
type Server struct {
	newStorageClient NewStorageClientFunc
	bucket           string
	blockSize        int
	defaults         config.AnnotateConfig

	logger    *zap.Logger
	collector *metrics.Collector
}

// New returns a Server that reads BAM files from bucket through the clients
// returned by newStorageClient.  Either logger or collector may be nil.
func New(cfg config.Config, newStorageClient NewStorageClientFunc, bucket string, logger *zap.Logger, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		newStorageClient: newStorageClient,
		bucket:           bucket,
		blockSize:        cfg.Server.BlockSize,
		defaults:         cfg.Annotate,
		logger:           logger,
		collector:        collector,
	}
}

// Handler returns the routes of the service.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestID, forwardOrigin, s.logRequest)
	router.POST("/coverage/:id", s.serveCoverage)
	if s.collector != nil {
		router.GET("/metrics", gin.WrapH(s.collector.Handler()))
	}
	return router
}

func requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	}
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}

func (s *Server) logRequest(c *gin.Context) {
	began := time.Now()
	c.Next()
	s.logger.Info("Served request",
		zap.String(requestIDKey, c.GetString(requestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(began)))
}

func (s *Server) serveCoverage(c *gin.Context) {
	ctx := c.Request.Context()
	logger := s.logger.With(zap.String(requestIDKey, c.GetString(requestIDKey)))

	id := c.Param("id")
	if id == "" || strings.Contains(id, "..") {
		s.fail(c, newInvalidInputError("parsing ID", errInvalidID))
		return
	}

	opts, err := s.options(c)
	if err != nil {
		s.fail(c, newInvalidInputError("parsing options", err))
		return
	}
	opts.Logger = logger
	if s.collector != nil {
		opts.Observer = s.collector
	}

	client, err := s.newStorageClient(c.Request)
	if err != nil {
		s.fail(c, newStorageError("creating client", err))
		return
	}

	source, closeSource, err := s.openSource(ctx, client, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer closeSource()

	pipeline, err := annotate.New(c.Request.Body, source, opts)
	if err != nil {
		s.fail(c, newInvalidInputError("configuring pipeline", err))
		return
	}

	// Until the first result is ready a failure can still be reported
	// through the status code.
	more := pipeline.Next()
	if !more {
		if err := pipeline.Err(); err != nil {
			s.fail(c, newPipelineError(err))
			return
		}
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	w := report.NewJSONL(c.Writer)
	count := 0
	for ; more; more = pipeline.Next() {
		if err := w.Write(pipeline.Result()); err != nil {
			logger.Warn("Failed to write result", zap.Error(err))
			s.observe("aborted")
			return
		}
		count++
		if count%flushInterval == 0 {
			if err := w.Flush(); err != nil {
				logger.Warn("Failed to flush results", zap.Error(err))
				s.observe("aborted")
				return
			}
			c.Writer.Flush()
		}
	}
	if err := w.Flush(); err != nil {
		logger.Warn("Failed to flush results", zap.Error(err))
		s.observe("aborted")
		return
	}

	if err := pipeline.Err(); err != nil {
		logger.Error("Annotation failed", zap.Int("results", count), zap.Error(err))
		if _, err := c.Writer.Write(errorLine(err)); err != nil {
			logger.Warn("Failed to write error", zap.Error(err))
		}
		s.observe("error")
		return
	}
	c.Writer.Flush()
	s.observe("ok")
}

// options returns the configured pipeline options overridden by the query
// parameters of the request.
func (s *Server) options(c *gin.Context) (annotate.Options, error) {
	cfg := s.defaults
	for _, param := range []struct {
		name  string
		value *int
	}{
		{"cutoff", &cfg.Cutoff},
		{"extension", &cfg.Extension},
		{"bp_threshold", &cfg.BPThreshold},
	} {
		raw, ok := c.GetQuery(param.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return annotate.Options{}, fmt.Errorf("%s: %w", param.name, err)
		}
		*param.value = n
	}
	if prefix, ok := c.GetQuery("contig_prepend"); ok {
		cfg.ContigPrepend = prefix
	}

	opts := cfg.Options()
	if err := opts.Validate(); err != nil {
		return annotate.Options{}, err
	}
	return opts, nil
}

// indexSuffixes are tried in order to locate the index of <id>.bam.
var indexSuffixes = []string{".bam.bai", ".bai", ".bam.csi"}

func (s *Server) openSource(ctx context.Context, client storage.Client, id string) (*depth.BAM, func(), error) {
	idx, err := s.readIndex(ctx, client, id)
	if err != nil {
		return nil, nil, err
	}

	data := storage.NewReadSeeker(ctx, client.NewObjectHandle(s.bucket, id+".bam"), s.blockSize)
	if _, err := data.Read(nil); err != nil && err != io.EOF {
		data.Close()
		return nil, nil, newStorageError("opening data", err)
	}
	source, err := depth.NewBAM(data, idx)
	if err != nil {
		data.Close()
		return nil, nil, fmt.Errorf("opening %s.bam: %w", id, err)
	}
	return source, func() {
		source.Close()
		data.Close()
	}, nil
}

func (s *Server) readIndex(ctx context.Context, client storage.Client, id string) (*index.Index, error) {
	for _, suffix := range indexSuffixes {
		rc, err := client.NewObjectHandle(s.bucket, id+suffix).NewRangeReader(ctx, 0, -1)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, newStorageError("opening index", err)
		}
		idx, err := depth.LoadIndex(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s%s: %w", id, suffix, err)
		}
		return idx, nil
	}
	return nil, newNotFoundError("opening index", fmt.Errorf("no index for %s.bam", id))
}

func (s *Server) fail(c *gin.Context, err error) {
	writeError(c, err)
	s.observe("error")
}

func (s *Server) observe(status string) {
	if s.collector != nil {
		s.collector.ObserveRequest(status)
	}
}

func errorLine(err error) []byte {
	line, _ := json.Marshal(map[string]string{"error": err.Error()})
	return append(line, '\n')
}
