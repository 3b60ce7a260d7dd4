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

// This binary serves coverage requests over HTTP.
//
// BAM files and their indexes are read from -directory, or from the bucket
// named by -bucket: a Cloud Storage bucket, or an Amazon S3 bucket when
// written as s3://name.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/googlegenomics/htscov/internal/config"
	"github.com/googlegenomics/htscov/internal/metrics"
	"github.com/googlegenomics/htscov/internal/server"
	"github.com/googlegenomics/htscov/internal/storage"
)

type assignments []string

func (a *assignments) String() string     { return strings.Join(*a, ",") }
func (a *assignments) Set(v string) error { *a = append(*a, v); return nil }

var (
	configPath = flag.String("config", "", "YAML or JSON configuration file")
	port       = flag.Int("port", 0, "HTTP service port (overrides server.port)")
	directory  = flag.String("directory", "", "directory that contains bam and index files (overrides server.directory)")
	bucket     = flag.String("bucket", "", "Cloud Storage bucket that contains bam and index files (overrides server.bucket)")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")
	debug     = flag.Bool("debug", false, "log every depth query")

	overrides assignments
)

func init() {
	flag.Var(&overrides, "set", "configuration override key=value, may be repeated")
}

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if *debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("Loading configuration", zap.Error(err))
	}

	if cfg.Server.Secure && (*httpsCert == "" || *httpsKey == "") {
		logger.Fatal("You must specify both -https_cert and -https_key in secure mode.")
	}

	newStorageClient, bucketName, err := storageClient(cfg.Server)
	if err != nil {
		logger.Fatal("Configuring storage", zap.Error(err))
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}
	handler := server.New(cfg, newStorageClient, bucketName, logger, collector).Handler()

	address := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Serving", zap.String("address", address), zap.Bool("secure", cfg.Server.Secure))
	if cfg.Server.Secure {
		if err := http.ListenAndServeTLS(address, *httpsCert, *httpsKey, handler); err != nil {
			logger.Fatal("HTTPS server returned an error", zap.Error(err))
		}
	} else {
		if err := http.ListenAndServe(address, handler); err != nil {
			logger.Fatal("HTTP server returned an error", zap.Error(err))
		}
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.SetAll(cfg, overrides)
	if err != nil {
		return config.Config{}, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "directory":
			cfg.Server.Directory = *directory
		case "bucket":
			cfg.Server.Bucket = *bucket
		case "secure":
			cfg.Server.Secure = *secure
		}
	})
	return cfg, cfg.Validate()
}

// storageClient selects where BAM files are read from.
func storageClient(cfg config.ServerConfig) (server.NewStorageClientFunc, string, error) {
	switch {
	case cfg.Directory != "":
		client := storage.FileClient{Root: cfg.Directory}
		return func(*http.Request) (storage.Client, error) { return client, nil }, "", nil
	case strings.HasPrefix(cfg.Bucket, storage.S3Scheme+"://"):
		client, err := storage.NewS3Client(context.Background())
		if err != nil {
			return nil, "", err
		}
		return func(*http.Request) (storage.Client, error) { return client, nil }, strings.TrimPrefix(cfg.Bucket, storage.S3Scheme+"://"), nil
	case cfg.Bucket != "" && cfg.Secure:
		return storage.NewClientFromBearerToken, cfg.Bucket, nil
	case cfg.Bucket != "":
		return func(req *http.Request) (storage.Client, error) {
			return storage.NewPublicClient(req.Context())
		}, cfg.Bucket, nil
	}
	return nil, "", fmt.Errorf("no directory or bucket specified")
}
