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

// Package bed parses BED interval records.
package bed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/googlegenomics/htscov/internal/genomics"
)

const (
	minimumFields = 3

	// Records longer than this are rejected by the scanner.
	maximumRecordLength = 1 << 20
)

// ErrTooFewFields is returned for records without contig, start and end.
var ErrTooFewFields = errors.New("too few fields")

// ParseError describes a record that could not be parsed.
type ParseError struct {
	// Line is the 1-based line number of the record, or zero when the
	// record did not come from a Reader.
	Line   int
	Record string
	Err    error
}

func (err *ParseError) Error() string {
	if err.Line > 0 {
		return fmt.Sprintf("line %d: parsing %q: %v", err.Line, err.Record, err.Err)
	}
	return fmt.Sprintf("parsing %q: %v", err.Record, err.Err)
}

func (err *ParseError) Unwrap() error {
	return err.Err
}

// Parser converts BED records into intervals.
type Parser struct {
	// ContigPrepend is prefixed to every contig name, e.g. "chr" turns "1"
	// into "chr1".
	ContigPrepend string
}

// Parse parses a single record made of the fields contig, start, end and an
// optional name.  Fields are tab separated; records without tabs are split on
// whitespace.  Fields past the name are ignored.
func (p Parser) Parse(record string) (genomics.Interval, error) {
	record = strings.TrimRight(record, "\r\n")

	var fields []string
	if strings.Contains(record, "\t") {
		fields = strings.Split(record, "\t")
	} else {
		fields = strings.Fields(record)
	}
	if len(fields) < minimumFields {
		return genomics.Interval{}, &ParseError{Record: record, Err: ErrTooFewFields}
	}

	start, err := parseCoordinate(fields[1])
	if err != nil {
		return genomics.Interval{}, &ParseError{Record: record, Err: fmt.Errorf("start: %w", err)}
	}
	end, err := parseCoordinate(fields[2])
	if err != nil {
		return genomics.Interval{}, &ParseError{Record: record, Err: fmt.Errorf("end: %w", err)}
	}

	var name string
	if len(fields) > minimumFields {
		name = strings.TrimSpace(fields[3])
	}

	interval, err := genomics.NewInterval(p.ContigPrepend+strings.TrimSpace(fields[0]), start, end, name)
	if err != nil {
		return genomics.Interval{}, &ParseError{Record: record, Err: err}
	}
	return interval, nil
}

func parseCoordinate(field string) (int, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(field), 10, 31)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// IsHeader reports whether line carries no interval: blank lines, comments
// and the track and browser lines of the UCSC format.
func IsHeader(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch first := fields[0]; {
	case strings.HasPrefix(first, "#"), first == "track", first == "browser":
		return true
	}
	return false
}

// Reader streams intervals from BED data.  Use it like a bufio.Scanner:
//
//	r := bed.NewReader(input, bed.Parser{})
//	for r.Next() {
//		interval := r.Interval()
//	}
//	if err := r.Err(); err != nil {
//		...
//	}
//
// The first malformed record stops the Reader.
type Reader struct {
	scanner  *bufio.Scanner
	parser   Parser
	line     int
	interval genomics.Interval
	err      error
}

// NewReader returns a Reader that parses records from r with parser.
func NewReader(r io.Reader, parser Parser) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maximumRecordLength)
	return &Reader{scanner: scanner, parser: parser}
}

// Next advances to the next interval.  It returns false at the end of the
// input or after an error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if IsHeader(line) {
			continue
		}
		interval, err := r.parser.Parse(line)
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				parseErr.Line = r.line
			}
			r.err = err
			return false
		}
		r.interval = interval
		return true
	}
	if err := r.scanner.Err(); err != nil {
		r.err = fmt.Errorf("reading line %d: %w", r.line+1, err)
	}
	return false
}

// Interval returns the interval produced by the last call to Next.
func (r *Reader) Interval() genomics.Interval {
	return r.interval
}

// Err returns the first error encountered by the Reader.
func (r *Reader) Err() error {
	return r.err
}
