// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
vcf-dump parses a VCF file with the push-fed scanner and re-emits the
extracted fields, either as VCF text or as one TSV row per (record,
sample) pair.  Malformed data lines are reported on stderr and skipped.
*/

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/vcf"
	"github.com/klauspost/compress/gzip"
)

var (
	format      = flag.String("format", "vcf", "Output format; 'vcf' and 'tsv' supported")
	outputPath  = flag.String("o", "", "Output path; defaults to stdout. A .gz suffix gzips the output")
	bufferBytes = flag.Int("buffer-bytes", 1024*1024, "Size of the read buffer handed to the scanner")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("usage: vcf-dump [flags] VCF_FILE")
	}
	ctx := vcontext.Background()
	path := flag.Arg(0)

	in, err := file.Open(ctx, path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	closeOnce := errors.Once{}
	defer func() {
		closeOnce.Set(in.Close(ctx))
		if err := closeOnce.Err(); err != nil {
			log.Fatalf("close %s: %v", path, err)
		}
	}()

	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".bgz") || strings.HasSuffix(path, ".vcf.gz") {
		// bgzip is the standard compression for VCF; a .vcf.gz from the
		// genomics toolchain is a bgzf file.
		bg, err := bgzf.NewReader(r, 0)
		if err != nil {
			log.Fatalf("%s: not a bgzf file: %v", path, err)
		}
		defer func() { closeOnce.Set(bg.Close()) }()
		r = bg
	} else if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}

	var w io.Writer = os.Stdout
	if *outputPath != "" {
		out, err := file.Create(ctx, *outputPath)
		if err != nil {
			log.Fatalf("create %s: %v", *outputPath, err)
		}
		defer func() { closeOnce.Set(out.Close(ctx)) }()
		w = out.Writer(ctx)
		if strings.HasSuffix(*outputPath, ".gz") {
			gz := gzip.NewWriter(w)
			defer func() { closeOnce.Set(gz.Close()) }()
			w = gz
		}
	}

	var em emitter
	switch *format {
	case "vcf":
		em = newVCFEmitter(w)
	case "tsv":
		em = newTSVEmitter(w)
	default:
		log.Fatalf("unknown -format %q; 'vcf' and 'tsv' supported", *format)
	}

	if err := dump(newScannerFeeder(r, *bufferBytes), em); err != nil {
		log.Fatalf("%s: %v", path, err)
	}
	closeOnce.Set(em.Flush())
}

// scannerFeeder drives a Scanner from a reader, looping on NeedMoreData.
type scannerFeeder struct {
	scanner *vcf.Scanner
	r       io.Reader
	buf     []byte
}

func newScannerFeeder(r io.Reader, bufSize int) *scannerFeeder {
	return &scannerFeeder{
		scanner: vcf.NewScanner(),
		r:       r,
		buf:     make([]byte, bufSize),
	}
}

// complete feeds the scanner until the pending operation resolves.  It
// reports false on a parse error, leaving the error in the scanner.
func (f *scannerFeeder) complete(pe vcf.Event) bool {
	for pe == vcf.NeedMoreData {
		pe = f.scanner.Feed(f.read())
	}
	if pe == vcf.OKWithWarnings {
		for _, w := range f.scanner.Warnings() {
			log.Printf("warning: line %d: %s", w.LineNumber, w.Message)
		}
	}
	return pe != vcf.Error
}

func (f *scannerFeeder) read() []byte {
	for {
		n, err := f.r.Read(f.buf)
		if n > 0 {
			return f.buf[:n]
		}
		if err == io.EOF {
			return nil // signals end-of-input to the scanner
		}
		if err != nil {
			log.Fatalf("read: %v", err)
		}
	}
}

// record carries the fields of one parsed data line.
type record struct {
	Chrom   string
	Pos     uint32
	IDs     []string
	Ref     string
	Alts    []string
	Quality string
	Filters []string
	Info    []string
	// One entry per genotype field; empty when GT was not captured.
	GT     [][]int
	Phased []bool
}

type emitter interface {
	Header(h *vcf.Header) error
	Record(h *vcf.Header, rec *record) error
	Flush() error
}

// dump parses the whole stream, emitting the header and every data line
// that parses; lines with errors are logged and skipped.
func dump(f *scannerFeeder, e emitter) error {
	sc := f.scanner
	if !f.complete(vcf.NeedMoreData) {
		return sc.Err()
	}
	header := sc.Header()
	if err := e.Header(header); err != nil {
		return err
	}

	var rec record
	for !sc.AtEOF() {
		if parseLine(f, header, &rec) {
			if err := e.Record(header, &rec); err != nil {
				return err
			}
		} else {
			log.Printf("line %d: %v", sc.LineNumber(), sc.Err())
		}
		if !f.complete(sc.ClearLine()) {
			return sc.Err()
		}
	}
	return nil
}

func parseLine(f *scannerFeeder, header *vcf.Header, rec *record) bool {
	sc := f.scanner
	rec.GT = rec.GT[:0]
	rec.Phased = rec.Phased[:0]

	if !f.complete(sc.ParseLoc(&rec.Chrom, &rec.Pos)) {
		return false
	}
	if !f.complete(sc.ParseIDs(&rec.IDs)) {
		return false
	}
	if !f.complete(sc.ParseAlleles(&rec.Ref, &rec.Alts)) {
		return false
	}
	if !f.complete(sc.ParseQuality(&rec.Quality)) {
		return false
	}
	if !f.complete(sc.ParseFilters(&rec.Filters)) {
		return false
	}
	if !f.complete(sc.ParseInfo()) {
		return false
	}
	rec.Info = append(rec.Info[:0], sc.Info()...)

	if !header.HasGenotypeInfo() {
		return true
	}
	if !f.complete(sc.ParseGenotypeFormat()) {
		return false
	}
	if !sc.CaptureGT() {
		log.Printf("line %d: no GT key", sc.LineNumber())
		return true
	}
	for sc.GenotypeAvailable() {
		if !f.complete(sc.ParseGenotype()) {
			return false
		}
		rec.GT = append(rec.GT, append([]int(nil), sc.GT()...))
		rec.Phased = append(rec.Phased, sc.PhasedGT())
	}
	return true
}
