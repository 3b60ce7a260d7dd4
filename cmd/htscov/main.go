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

// This binary computes the coverage and completeness of BED intervals
// against an indexed BAM file.
//
// Results are written to standard output (or -o) in the order the intervals
// were read.  Without BED file arguments the intervals are read from
// standard input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/googlegenomics/htscov/internal/annotate"
	"github.com/googlegenomics/htscov/internal/config"
	"github.com/googlegenomics/htscov/internal/depth"
	"github.com/googlegenomics/htscov/internal/index"
	"github.com/googlegenomics/htscov/internal/metrics"
	"github.com/googlegenomics/htscov/internal/report"
	"github.com/googlegenomics/htscov/internal/storage"
)

type assignments []string

func (a *assignments) String() string     { return strings.Join(*a, ",") }
func (a *assignments) Set(v string) error { *a = append(*a, v); return nil }

var (
	bamPath    = flag.String("bam", "", "BAM file, local path, gs://bucket/object or s3://bucket/object")
	indexPath  = flag.String("index", "", "BAI or CSI index (default: next to the BAM)")
	configPath = flag.String("config", "", "YAML or JSON configuration file")
	format     = flag.String("format", "tsv", "output format: "+strings.Join(report.Formats(), ", "))
	output     = flag.String("o", "", "output file, compressed if it ends in .lz4 (default: standard output)")
	profileDir = flag.String("profile", "", "write a CPU profile to this directory")
	debug      = flag.Bool("debug", false, "log every depth query")

	cutoff        = flag.Int("cutoff", annotate.DefaultCutoff, "minimum depth counted as complete")
	extension     = flag.Int("extension", annotate.DefaultExtension, "bases added to both sides of every interval")
	contigPrepend = flag.String("contig_prepend", "", "prefix added to every contig name")
	bpThreshold   = flag.Int("bp_threshold", annotate.DefaultBPThreshold, "maximum span read with one depth query")

	overrides assignments
)

func init() {
	flag.Var(&overrides, "set", "configuration override key=value, may be repeated")
}

func main() {
	flag.Parse()
	os.Exit(annotateMain())
}

// annotateMain runs the annotation and returns the process exit code.  The
// profile and logger are flushed before it returns, also on failure.
func annotateMain() int {
	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if *profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir), profile.Quiet).Stop()
	}

	logger = logger.With(zap.String("run_id", uuid.New().String()))
	if err := run(context.Background(), logger); err != nil {
		logger.Error("Annotation failed", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig layers the defaults, the configuration file, -set overrides and
// finally the explicitly given flags.
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
		case "cutoff":
			cfg.Annotate.Cutoff = *cutoff
		case "extension":
			cfg.Annotate.Extension = *extension
		case "contig_prepend":
			cfg.Annotate.ContigPrepend = *contigPrepend
		case "bp_threshold":
			cfg.Annotate.BPThreshold = *bpThreshold
		}
	})
	return cfg, cfg.Validate()
}

func run(ctx context.Context, logger *zap.Logger) error {
	if *bamPath == "" {
		return errors.New("-bam is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	opener := &storage.Opener{BlockSize: cfg.Server.BlockSize}
	idx, err := openIndex(ctx, opener, *bamPath, *indexPath)
	if err != nil {
		return err
	}
	data, err := opener.Open(ctx, *bamPath)
	if err != nil {
		return fmt.Errorf("opening BAM: %w", err)
	}
	defer data.Close()
	source, err := depth.NewBAM(data, idx)
	if err != nil {
		return err
	}
	defer source.Close()

	opts := cfg.Annotate.Options()
	opts.Logger = logger
	if cfg.Metrics.Enabled {
		collector := metrics.New()
		opts.Observer = collector
		go serveMetrics(logger, cfg.Metrics.Address, collector)
	}

	out := io.WriteCloser(nopCloser{os.Stdout})
	if *output != "" {
		if out, err = report.Create(*output); err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
	}
	writer, err := report.New(*format, out)
	if err != nil {
		out.Close()
		return err
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	total := 0
	for _, input := range inputs {
		n, err := annotateFile(input, source, opts, writer)
		total += n
		if err != nil {
			writer.Flush()
			out.Close()
			return fmt.Errorf("%s: %w", input, err)
		}
	}
	if err := writer.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("writing results: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	logger.Info("Annotation complete", zap.Int("intervals", total), zap.Strings("inputs", inputs))
	return nil
}

// openIndex opens the explicit index location, or else the first of the
// usual index names next to the BAM that exists.
func openIndex(ctx context.Context, opener *storage.Opener, bam, location string) (*index.Index, error) {
	candidates := []string{location}
	if location == "" {
		candidates = []string{bam + ".bai", strings.TrimSuffix(bam, ".bam") + ".bai", bam + ".csi"}
	}
	for _, candidate := range candidates {
		rc, err := opener.Open(ctx, candidate)
		if err != nil {
			if storage.IsNotFound(err) && location == "" {
				continue
			}
			return nil, fmt.Errorf("opening index: %w", err)
		}
		idx, err := depth.LoadIndex(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", candidate, err)
		}
		return idx, nil
	}
	return nil, fmt.Errorf("no index found for %s, tried %s", bam, strings.Join(candidates, ", "))
}

func annotateFile(input string, source depth.Source, opts annotate.Options, writer report.Writer) (int, error) {
	in := io.Reader(os.Stdin)
	if input != "-" {
		file, err := report.Open(input)
		if err != nil {
			return 0, err
		}
		defer file.Close()
		in = file
	}

	pipeline, err := annotate.New(in, source, opts)
	if err != nil {
		return 0, err
	}
	count := 0
	for pipeline.Next() {
		if err := writer.Write(pipeline.Result()); err != nil {
			return count, fmt.Errorf("writing results: %w", err)
		}
		count++
	}
	return count, pipeline.Err()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func serveMetrics(logger *zap.Logger, address string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.Warn("Metrics server stopped", zap.Error(err))
	}
}
