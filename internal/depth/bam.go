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

package depth

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	htsbam "github.com/biogo/hts/bam"
	htsbgzf "github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/htscov/internal/bam"
	"github.com/googlegenomics/htscov/internal/bgzf"
	"github.com/googlegenomics/htscov/internal/binary"
	"github.com/googlegenomics/htscov/internal/csi"
	"github.com/googlegenomics/htscov/internal/genomics"
	"github.com/googlegenomics/htscov/internal/index"
	samtext "github.com/googlegenomics/htscov/internal/sam"
)

// DefaultExcludeFlags are the record flags skipped by the BAM source, the
// same set samtools depth ignores.
const DefaultExcludeFlags = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// LoadIndex reads a BAI or CSI index, detecting the format from its leading
// bytes.
func LoadIndex(r io.Reader) (*index.Index, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading index magic: %w", err)
	}
	switch {
	case bytes.Equal(magic, []byte(bam.Magic)):
		return bam.ReadIndex(br)
	case magic[0] == 0x1f && magic[1] == 0x8b:
		return csi.ReadIndex(br)
	}
	return nil, fmt.Errorf("unrecognized index format (magic %q)", magic)
}

// BAM is a Source that computes depth by piling up the alignments of an
// indexed, coordinate sorted BAM file.  It holds a single file handle and is
// not safe for concurrent use.
type BAM struct {
	reader     *htsbam.Reader
	index      *index.Index
	references map[string]*sam.Reference

	// ExcludeFlags selects the records that do not contribute to depth.
	ExcludeFlags sam.Flags
}

// NewBAM returns a BAM source reading alignments from r using idx to locate
// them.  The caller remains responsible for closing r.
func NewBAM(r io.ReadSeeker, idx *index.Index) (*BAM, error) {
	text, err := readHeaderText(r)
	if err != nil {
		return nil, fmt.Errorf("reading BAM header text: %w", err)
	}
	reader, err := htsbam.NewReader(r, 1)
	if err != nil {
		return nil, fmt.Errorf("opening BAM: %w", err)
	}

	refs := reader.Header().Refs()
	if len(refs) != idx.References() {
		reader.Close()
		return nil, fmt.Errorf("index describes %d references, BAM header has %d", idx.References(), len(refs))
	}

	references := make(map[string]*sam.Reference, len(refs))
	for _, ref := range refs {
		references[ref.Name()] = ref
	}
	if err := addAliases(references, text); err != nil {
		reader.Close()
		return nil, err
	}
	return &BAM{
		reader:       reader,
		index:        idx,
		references:   references,
		ExcludeFlags: DefaultExcludeFlags,
	}, nil
}

// readHeaderText returns the plain SAM header text stored at the start of the
// BAM stream and rewinds r.  The decoded sam.Header drops @SQ AN tags so
// aliases are taken from the raw text.
func readHeaderText(r io.ReadSeeker) ([]byte, error) {
	bg, err := htsbgzf.NewReader(r, 1)
	if err != nil {
		return nil, err
	}
	text, err := readText(bg)
	// The decompressor must be stopped before r is moved.
	if cerr := bg.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding: %w", err)
	}
	return text, nil
}

func readText(r io.Reader) ([]byte, error) {
	if err := binary.ExpectBytes(r, []byte("BAM\x01")); err != nil {
		return nil, fmt.Errorf("checking magic: %w", err)
	}
	var length int32
	if err := binary.Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading text length: %w", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("negative text length %d", length)
	}
	text := make([]byte, length)
	if _, err := io.ReadFull(r, text); err != nil {
		return nil, fmt.Errorf("reading %d bytes of text: %w", length, err)
	}
	return text, nil
}

// addAliases makes the alternative names declared in the header text resolve
// to their reference.  Primary names take precedence.
func addAliases(references map[string]*sam.Reference, text []byte) error {
	aliases, err := samtext.Aliases(bytes.NewReader(text))
	if err != nil {
		return fmt.Errorf("reading reference aliases: %w", err)
	}
	for alias, name := range aliases {
		if _, ok := references[alias]; ok {
			continue
		}
		if ref, ok := references[name]; ok {
			references[alias] = ref
		}
	}
	return nil
}

// Close releases the BAM decoder.
func (b *BAM) Close() error {
	return b.reader.Close()
}

// Depth returns the number of aligned bases at each position of [start, end)
// on contig.  Match, sequence match and mismatch operations count towards the
// depth; deletions and skipped regions do not.
func (b *BAM) Depth(contig string, start, end int) ([]int, error) {
	ref, ok := b.references[contig]
	if !ok {
		return nil, fmt.Errorf("%q: %w", contig, ErrUnknownContig)
	}
	if err := checkSpan(contig, start, end, ref.Len()); err != nil {
		return nil, err
	}

	depths := make([]int, end-start)
	if start == end {
		return depths, nil
	}

	chunks := b.index.Chunks(genomics.Region{
		ReferenceID: int32(ref.ID()),
		Start:       uint32(start),
		End:         uint32(end),
	})
	chunks = bgzf.Merge(chunks, bgzf.NoSizeLimit)
	if len(chunks) == 0 {
		return depths, nil
	}

	it, err := htsbam.NewIterator(b.reader, convertChunks(chunks))
	if err != nil {
		return nil, fmt.Errorf("seeking to %s:%d-%d: %w", contig, start, end, err)
	}
	defer it.Close()

	for it.Next() {
		record := it.Record()
		if record.Ref == nil || record.Ref.ID() < ref.ID() {
			continue
		}
		if record.Ref.ID() > ref.ID() || record.Pos >= end {
			break
		}
		if record.Flags&b.ExcludeFlags != 0 {
			continue
		}
		pileup(depths, record, start, end)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("reading records for %s:%d-%d: %w", contig, start, end, err)
	}
	return depths, nil
}

func pileup(depths []int, record *sam.Record, start, end int) {
	pos := record.Pos
	for _, op := range record.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i, last := max(pos, start), min(pos+n, end); i < last; i++ {
				depths[i-start]++
			}
			pos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			pos += n
		}
		if pos >= end {
			return
		}
	}
}

func convertChunks(chunks []bgzf.Chunk) []htsbgzf.Chunk {
	converted := make([]htsbgzf.Chunk, len(chunks))
	for i, chunk := range chunks {
		converted[i] = htsbgzf.Chunk{
			Begin: htsbgzf.Offset{File: int64(chunk.Start.BlockOffset()), Block: chunk.Start.DataOffset()},
			End:   htsbgzf.Offset{File: int64(chunk.End.BlockOffset()), Block: chunk.End.DataOffset()},
		}
	}
	return converted
}
