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

// Package depthtest builds small indexed BAM files for tests.
package depthtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"
)

// Contig describes a reference sequence of the generated BAM header.
type Contig struct {
	Name   string
	Length int
	// Aliases are written as the AN tag of the contig's @SQ line.
	Aliases []string
}

// Read describes one alignment.  Cigar uses the SAM text form, e.g. "5M2D5M".
type Read struct {
	Contig string
	Pos    int
	Cigar  string
	Flags  sam.Flags
}

// Build returns a coordinate sorted BAM file holding reads and its BAI index.
func Build(contigs []Contig, reads []Read) ([]byte, []byte, error) {
	header, err := newHeader(contigs)
	if err != nil {
		return nil, nil, err
	}
	header.SortOrder = sam.Coordinate
	refs := make(map[string]*sam.Reference)
	for _, ref := range header.Refs() {
		refs[ref.Name()] = ref
	}

	records := make([]*sam.Record, 0, len(reads))
	for i, read := range reads {
		ref, ok := refs[read.Contig]
		if !ok {
			return nil, nil, fmt.Errorf("read %d: unknown contig %q", i, read.Contig)
		}
		cigar, err := sam.ParseCigar([]byte(read.Cigar))
		if err != nil {
			return nil, nil, fmt.Errorf("read %d: parsing cigar: %v", i, err)
		}
		_, length := cigar.Lengths()
		seq := bytes.Repeat([]byte{'A'}, length)
		qual := bytes.Repeat([]byte{30}, length)
		record, err := sam.NewRecord(fmt.Sprintf("r%03d", i), ref, nil, read.Pos, -1, 0, 60, cigar, seq, qual, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("read %d: creating record: %v", i, err)
		}
		record.Flags = read.Flags
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if a, b := records[i].Ref.ID(), records[j].Ref.ID(); a != b {
			return a < b
		}
		return records[i].Pos < records[j].Pos
	})

	var data bytes.Buffer
	w, err := bam.NewWriter(&data, header, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("creating writer: %v", err)
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return nil, nil, fmt.Errorf("writing record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing writer: %v", err)
	}

	file, err := addAliasTags(data.Bytes(), contigs)
	if err != nil {
		return nil, nil, err
	}
	index, err := buildIndex(file)
	if err != nil {
		return nil, nil, err
	}
	return file, index, nil
}

func newHeader(contigs []Contig) (*sam.Header, error) {
	var list []*sam.Reference
	for _, contig := range contigs {
		ref, err := sam.NewReference(contig.Name, "", "", contig.Length, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("creating reference %q: %v", contig.Name, err)
		}
		list = append(list, ref)
	}
	header, err := sam.NewHeader(nil, list)
	if err != nil {
		return nil, fmt.Errorf("creating header: %v", err)
	}
	return header, nil
}

// addAliasTags appends the AN tag of every aliased contig to its @SQ line in
// the header text of the BAM file.  The biogo writer cannot emit AN itself.
func addAliasTags(file []byte, contigs []Contig) ([]byte, error) {
	aliases := make(map[string]string)
	for _, contig := range contigs {
		if len(contig.Aliases) > 0 {
			aliases[contig.Name] = strings.Join(contig.Aliases, ",")
		}
	}
	if len(aliases) == 0 {
		return file, nil
	}

	r, err := bgzf.NewReader(bytes.NewReader(file), 1)
	if err != nil {
		return nil, fmt.Errorf("decompressing BAM: %v", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing BAM: %v", err)
	}
	r.Close()
	if len(raw) < 8 || string(raw[:4]) != "BAM\x01" {
		return nil, fmt.Errorf("not a BAM stream")
	}
	length := int(binary.LittleEndian.Uint32(raw[4:8]))
	if 8+length > len(raw) {
		return nil, fmt.Errorf("header text length %d exceeds stream", length)
	}
	text, rest := raw[8:8+length], raw[8+length:]

	var out strings.Builder
	for _, line := range strings.SplitAfter(string(text), "\n") {
		body := strings.TrimSuffix(line, "\n")
		if strings.HasPrefix(body, "@SQ\t") {
			for _, field := range strings.Split(body, "\t")[1:] {
				if name := strings.TrimPrefix(field, "SN:"); name != field {
					if an, ok := aliases[name]; ok {
						body += "\tAN:" + an
					}
					break
				}
			}
		}
		out.WriteString(body)
		if strings.HasSuffix(line, "\n") {
			out.WriteString("\n")
		}
	}

	var stream bytes.Buffer
	stream.WriteString("BAM\x01")
	binary.Write(&stream, binary.LittleEndian, int32(out.Len()))
	stream.WriteString(out.String())
	stream.Write(rest)

	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf, 1)
	if _, err := w.Write(stream.Bytes()); err != nil {
		return nil, fmt.Errorf("compressing BAM: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing BAM: %v", err)
	}
	return buf.Bytes(), nil
}

func buildIndex(data []byte) ([]byte, error) {
	r, err := bam.NewReader(bytes.NewReader(data), 1)
	if err != nil {
		return nil, fmt.Errorf("reading BAM: %v", err)
	}
	defer r.Close()

	var idx bam.Index
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %v", err)
		}
		if err := idx.Add(record, r.LastChunk()); err != nil {
			return nil, fmt.Errorf("indexing record: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := bam.WriteIndex(&buf, &idx); err != nil {
		return nil, fmt.Errorf("writing index: %v", err)
	}
	return buf.Bytes(), nil
}
