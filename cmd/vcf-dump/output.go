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

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/vcf"
)

// vcfEmitter re-emits the parsed fields as VCF text, the way the parser
// understood them.
type vcfEmitter struct {
	w *bufio.Writer
}

func newVCFEmitter(w io.Writer) *vcfEmitter {
	return &vcfEmitter{w: bufio.NewWriter(w)}
}

func (e *vcfEmitter) Header(h *vcf.Header) error {
	e.w.WriteString("##fileformat=")
	e.w.WriteString(h.FileFormat())
	e.w.WriteByte('\n')
	meta := h.MetaInfo()
	for _, key := range h.MetaInfoKeys() {
		for _, value := range meta[key] {
			e.w.WriteString("##")
			e.w.WriteString(key)
			e.w.WriteByte('=')
			e.w.WriteString(value)
			e.w.WriteByte('\n')
		}
	}
	e.w.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	if h.HasGenotypeInfo() {
		e.w.WriteString("\tFORMAT")
		for _, id := range h.SampleIDs() {
			e.w.WriteByte('\t')
			e.w.WriteString(id)
		}
	}
	e.w.WriteByte('\n')
	return nil
}

// writeList writes a separator-joined list, or "." when it is empty.
func (e *vcfEmitter) writeList(items []string, sep byte) {
	if len(items) == 0 {
		e.w.WriteByte('.')
		return
	}
	for i, item := range items {
		if i > 0 {
			e.w.WriteByte(sep)
		}
		e.w.WriteString(item)
	}
}

func (e *vcfEmitter) Record(h *vcf.Header, rec *record) error {
	e.w.WriteString(rec.Chrom)
	e.w.WriteByte('\t')
	e.w.WriteString(strconv.FormatUint(uint64(rec.Pos), 10))
	e.w.WriteByte('\t')
	e.writeList(rec.IDs, ';')
	e.w.WriteByte('\t')
	e.w.WriteString(rec.Ref)
	e.w.WriteByte('\t')
	e.writeList(rec.Alts, ',')
	e.w.WriteByte('\t')
	if rec.Quality == "" {
		e.w.WriteByte('.')
	} else {
		e.w.WriteString(rec.Quality)
	}
	e.w.WriteByte('\t')
	e.writeList(rec.Filters, ';')
	e.w.WriteByte('\t')
	e.writeList(rec.Info, ';')
	if len(rec.GT) > 0 {
		e.w.WriteString("\tGT")
		for i, gt := range rec.GT {
			e.w.WriteByte('\t')
			e.w.WriteString(formatGT(gt, rec.Phased[i]))
		}
	}
	e.w.WriteByte('\n')
	return nil
}

func (e *vcfEmitter) Flush() error { return e.w.Flush() }

// formatGT re-serializes a decoded genotype with its phase separator.
func formatGT(gt []int, phased bool) string {
	sep := "/"
	if phased {
		sep = "|"
	}
	var b strings.Builder
	for i, allele := range gt {
		if i > 0 {
			b.WriteString(sep)
		}
		if allele < 0 {
			b.WriteByte('.')
		} else {
			b.WriteString(strconv.Itoa(allele))
		}
	}
	return b.String()
}

// tsvEmitter writes one row per (record, sample) pair; records without
// genotype data produce a single row with empty sample columns.
type tsvEmitter struct {
	w *tsv.Writer
}

func newTSVEmitter(w io.Writer) *tsvEmitter {
	return &tsvEmitter{w: tsv.NewWriter(w)}
}

func (e *tsvEmitter) Header(h *vcf.Header) error {
	e.w.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tSAMPLE\tGT")
	return e.w.EndLine()
}

func (e *tsvEmitter) writeShared(rec *record) {
	e.w.WriteString(rec.Chrom)
	e.w.WriteUint32(rec.Pos)
	e.w.WriteString(dotted(rec.IDs, ";"))
	e.w.WriteString(rec.Ref)
	e.w.WriteString(dotted(rec.Alts, ","))
	if rec.Quality == "" {
		e.w.WriteString(".")
	} else {
		e.w.WriteString(rec.Quality)
	}
	e.w.WriteString(dotted(rec.Filters, ";"))
	e.w.WriteString(dotted(rec.Info, ";"))
}

func (e *tsvEmitter) Record(h *vcf.Header, rec *record) error {
	if len(rec.GT) == 0 {
		e.writeShared(rec)
		e.w.WriteString("")
		e.w.WriteString("")
		return e.w.EndLine()
	}
	samples := h.SampleIDs()
	for i, gt := range rec.GT {
		e.writeShared(rec)
		if i < len(samples) {
			e.w.WriteString(samples[i])
		} else {
			e.w.WriteString("")
		}
		e.w.WriteString(formatGT(gt, rec.Phased[i]))
		if err := e.w.EndLine(); err != nil {
			return err
		}
	}
	return nil
}

func (e *tsvEmitter) Flush() error { return e.w.Flush() }

func dotted(items []string, sep string) string {
	if len(items) == 0 {
		return "."
	}
	return strings.Join(items, sep)
}
