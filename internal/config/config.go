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

// Package config holds the settings shared by the htscov binaries.
//
// Settings start from Default, are merged with an optional YAML (or JSON)
// document and finally with individual dot-key overrides such as
// "annotate.cutoff=15".  Every merge returns a new Config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/googlegenomics/htscov/internal/annotate"
)

// Config is the complete set of settings.
type Config struct {
	Annotate AnnotateConfig `yaml:"annotate"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AnnotateConfig holds the pipeline options.
type AnnotateConfig struct {
	Cutoff        int    `yaml:"cutoff"`
	Extension     int    `yaml:"extension"`
	ContigPrepend string `yaml:"contig_prepend"`
	BPThreshold   int    `yaml:"bp_threshold"`
}

// ServerConfig configures the HTTP coverage service.
type ServerConfig struct {
	Port int `yaml:"port"`
	// Directory holds <id>.bam files and their indexes.
	Directory string `yaml:"directory"`
	// Bucket is used when Directory is empty.  It names a Cloud Storage
	// bucket, or an S3 bucket when written as s3://name.
	Bucket string `yaml:"bucket"`
	// Secure forwards the client's bearer token to Cloud Storage.
	Secure bool `yaml:"secure"`
	// BlockSize is the number of bytes fetched by each ranged read.
	BlockSize int `yaml:"block_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Annotate: AnnotateConfig{
			Cutoff:      annotate.DefaultCutoff,
			Extension:   annotate.DefaultExtension,
			BPThreshold: annotate.DefaultBPThreshold,
		},
		Server: ServerConfig{
			Port:      8080,
			BlockSize: 1024 * 1024,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// Merge returns base updated with the keys present in document.  Keys
// absent from document keep their value from base.  Unknown keys are an
// error.
func Merge(base Config, document []byte) (Config, error) {
	merged := base
	decoder := yaml.NewDecoder(bytes.NewReader(document))
	decoder.KnownFields(true)
	if err := decoder.Decode(&merged); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return merged, nil
}

// Load merges the file at path into the defaults.  A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	cfg, err := Merge(Default(), data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Set returns base with the setting named by the dot separated key replaced
// by value.  The value is interpreted as a YAML scalar, so "15" sets a
// number and "chr" a string.
func Set(base Config, key, value string) (Config, error) {
	path := strings.Split(key, ".")
	for _, part := range path {
		if part == "" {
			return Config{}, fmt.Errorf("invalid key %q", key)
		}
	}

	var scalar interface{}
	if err := yaml.Unmarshal([]byte(value), &scalar); err != nil {
		return Config{}, fmt.Errorf("parsing value for %s: %w", key, err)
	}

	var document interface{} = scalar
	for i := len(path) - 1; i >= 0; i-- {
		document = map[string]interface{}{path[i]: document}
	}
	data, err := yaml.Marshal(document)
	if err != nil {
		return Config{}, fmt.Errorf("encoding %s: %w", key, err)
	}
	cfg, err := Merge(base, data)
	if err != nil {
		return Config{}, fmt.Errorf("setting %s: %w", key, err)
	}
	return cfg, nil
}

// SetAll applies a list of "key=value" assignments in order.
func SetAll(base Config, assignments []string) (Config, error) {
	cfg := base
	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return Config{}, fmt.Errorf("invalid assignment %q, want key=value", assignment)
		}
		var err error
		if cfg, err = Set(cfg, strings.TrimSpace(key), value); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Annotate.Options().Validate(); err != nil {
		return fmt.Errorf("annotate: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if c.Server.BlockSize <= 0 {
		return fmt.Errorf("server: block_size must be positive, got %d", c.Server.BlockSize)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.New("metrics: address is required when enabled")
	}
	return nil
}

// Options converts the settings into pipeline options without a logger or
// observer.
func (c AnnotateConfig) Options() annotate.Options {
	opts := annotate.DefaultOptions()
	opts.Cutoff = c.Cutoff
	opts.Extension = c.Extension
	opts.ContigPrepend = c.ContigPrepend
	opts.BPThreshold = c.BPThreshold
	return opts
}
