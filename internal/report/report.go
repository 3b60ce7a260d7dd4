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

// Package report writes annotation results.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/googlegenomics/htscov/internal/annotate"
)

// Writer writes results in one output format.
type Writer interface {
	Write(annotate.Result) error
	// Flush writes any buffered data to the underlying writer.
	Flush() error
}

var formats = map[string]func(io.Writer) Writer{
	"tsv":   NewTSV,
	"jsonl": NewJSONL,
}

// Formats lists the accepted format names.
func Formats() []string {
	var names []string
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the writer for the named format.
func New(format string, w io.Writer) (Writer, error) {
	newWriter, ok := formats[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q, want one of %v", format, Formats())
	}
	return newWriter(w), nil
}

// TSVHeader is the first line written by the tsv format.
const TSVHeader = "#contig\tstart\tend\tname\tcoverage\tcompleteness"

type tsvWriter struct {
	w             *bufio.Writer
	headerWritten bool
}

// NewTSV returns a writer producing one tab separated line per result
// after a header line.  Coordinates are those of the extended interval.
func NewTSV(w io.Writer) Writer {
	return &tsvWriter{w: bufio.NewWriter(w)}
}

func (t *tsvWriter) header() error {
	if t.headerWritten {
		return nil
	}
	t.headerWritten = true
	_, err := fmt.Fprintln(t.w, TSVHeader)
	return err
}

func (t *tsvWriter) Write(result annotate.Result) error {
	if err := t.header(); err != nil {
		return err
	}
	interval := result.Interval
	_, err := fmt.Fprintf(t.w, "%s\t%d\t%d\t%s\t%s\t%s\n",
		interval.Contig, interval.Start, interval.End, interval.Name,
		formatFloat(result.Coverage), formatFloat(result.Completeness))
	return err
}

func (t *tsvWriter) Flush() error {
	if err := t.header(); err != nil {
		return err
	}
	return t.w.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Record is the JSON form of a result.
type Record struct {
	Contig        string  `json:"contig"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Name          string  `json:"name,omitempty"`
	OriginalStart int     `json:"original_start"`
	OriginalEnd   int     `json:"original_end"`
	Coverage      float64 `json:"coverage"`
	Completeness  float64 `json:"completeness"`
}

// NewRecord converts result into its JSON form.
func NewRecord(result annotate.Result) Record {
	return Record{
		Contig:        result.Interval.Contig,
		Start:         result.Interval.Start,
		End:           result.Interval.End,
		Name:          result.Interval.Name,
		OriginalStart: result.Original.Start,
		OriginalEnd:   result.Original.End,
		Coverage:      result.Coverage,
		Completeness:  result.Completeness,
	}
}

type jsonlWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONL returns a writer producing one JSON object per line.
func NewJSONL(w io.Writer) Writer {
	buffered := bufio.NewWriter(w)
	enc := json.NewEncoder(buffered)
	enc.SetEscapeHTML(false)
	return &jsonlWriter{w: buffered, enc: enc}
}

func (j *jsonlWriter) Write(result annotate.Result) error {
	return j.enc.Encode(NewRecord(result))
}

func (j *jsonlWriter) Flush() error {
	return j.w.Flush()
}
