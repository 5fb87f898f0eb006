package vcf_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/vcf"
)

// feeder hands a VCF document to a Scanner in fixed-size chunks,
// resuming the pending operation until it resolves.  Exhausting the
// document feeds an empty buffer, which signals end-of-input.
type feeder struct {
	data  string
	off   int
	chunk int
}

func (f *feeder) resume(s *vcf.Scanner, pe vcf.Event) vcf.Event {
	for pe == vcf.NeedMoreData {
		n := len(f.data) - f.off
		if n > f.chunk {
			n = f.chunk
		}
		pe = s.Feed([]byte(f.data[f.off : f.off+n]))
		f.off += n
	}
	return pe
}

// runner executes one scenario step at a time and renders each outcome
// as a short trace string, so scenarios can be written as (op, want)
// tables and replayed under every chunk size.
type runner struct {
	s *vcf.Scanner
	f *feeder

	chrom   string
	pos     uint32
	ids     []string
	ref     string
	alts    []string
	quality string
	filters []string
}

func dumpList(l []string) string {
	switch len(l) {
	case 0:
		return "."
	case 1:
		return l[0]
	}
	return "[" + strings.Join(l, ",") + "]"
}

func dumpIntList(l []int) string {
	switch len(l) {
	case 0:
		return "."
	case 1:
		return strconv.Itoa(l[0])
	}
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// finish resolves pe.  On error it renders "E:<message>" and clears the
// rest of the line so the scenario can continue with the next record.
func (r *runner) finish(pe vcf.Event) (string, bool) {
	pe = r.f.resume(r.s, pe)
	if pe == vcf.Error {
		msg := "E:" + r.s.Err().Error()
		r.f.resume(r.s, r.s.ClearLine())
		return msg, false
	}
	return "", true
}

func (r *runner) step(op string) string {
	switch op {
	case "feed":
		// Header parsing: no line to clear on error, the scanner is
		// dead afterwards.
		if pe := r.f.resume(r.s, vcf.NeedMoreData); pe == vcf.Error {
			return "E:" + r.s.Err().Error()
		}
		return ""
	case "eof":
		if !r.s.AtEOF() {
			return "!EOF"
		}
		return ""
	case "line":
		return fmt.Sprintf("@%d", r.s.LineNumber())
	case "fileformat":
		return "[" + r.s.Header().FileFormat() + "]"
	case "meta":
		var parts []string
		meta := r.s.Header().MetaInfo()
		for _, key := range r.s.Header().MetaInfoKeys() {
			for _, v := range meta[key] {
				parts = append(parts, key+"="+v)
			}
		}
		return strings.Join(parts, "\n")
	case "genotypes?":
		if r.s.Header().HasGenotypeInfo() {
			return "with genotypes"
		}
		return "no genotypes"
	case "samples":
		return dumpList(r.s.Header().SampleIDs())
	case "samples#":
		return fmt.Sprintf("S#=%d", len(r.s.Header().SampleIDs()))
	case "loc":
		if out, ok := r.finish(r.s.ParseLoc(&r.chrom, &r.pos)); !ok {
			return out
		}
		return fmt.Sprintf("L:%s@%d", r.chrom, r.pos)
	case "ids":
		if out, ok := r.finish(r.s.ParseIDs(&r.ids)); !ok {
			return out
		}
		return "ID:" + dumpList(r.ids)
	case "alleles":
		if out, ok := r.finish(r.s.ParseAlleles(&r.ref, &r.alts)); !ok {
			return out
		}
		return "R:" + r.ref + ";A:" + dumpList(r.alts)
	case "quality":
		if out, ok := r.finish(r.s.ParseQuality(&r.quality)); !ok {
			return out
		}
		return "Q:" + r.quality
	case "filters":
		if out, ok := r.finish(r.s.ParseFilters(&r.filters)); !ok {
			return out
		}
		return "F:" + dumpList(r.filters)
	case "info":
		if out, ok := r.finish(r.s.ParseInfo()); !ok {
			return out
		}
		return "I:" + dumpList(r.s.Info())
	case "format":
		if out, ok := r.finish(r.s.ParseGenotypeFormat()); !ok {
			return out
		}
		return "GF:OK"
	case "capture":
		if r.s.CaptureGT() {
			return "GT:OK"
		}
		return "GT:NOT FOUND"
	case "genotype":
		if out, ok := r.finish(r.s.ParseGenotype()); !ok {
			return out
		}
		return "GT:" + dumpIntList(r.s.GT())
	case "avail":
		if r.s.GenotypeAvailable() {
			return "GT:AVAIL"
		}
		return "GT:NO MORE"
	case "clear":
		if out, ok := r.finish(r.s.ClearLine()); !ok {
			return out
		}
		return ";"
	}
	panic("unknown op " + op)
}

type check struct {
	op   string
	want string
}

// runAllChunkSizes replays the scenario once per chunk size from 1 to
// the full document, verifying that buffer seams never change what the
// scanner reports.
func runAllChunkSizes(t *testing.T, vcfText string, checks []check) {
	t.Helper()
	for chunk := 1; chunk <= len(vcfText); chunk++ {
		r := &runner{
			s: vcf.NewScanner(),
			f: &feeder{data: vcfText, chunk: chunk},
		}
		for i, c := range checks {
			if got := r.step(c.op); got != c.want {
				t.Fatalf("chunk size %d, step %d (%s): got %q, want %q",
					chunk, i, c.op, got, c.want)
			}
		}
	}
}

// insertCRs puts a '\r' before every '\n'.
func insertCRs(s string) string {
	return strings.Replace(s, "\n", "\r\n", -1)
}

// runWithAndWithoutCR also replays the scenario with CRLF line endings,
// which must be indistinguishable from plain LF.
func runWithAndWithoutCR(t *testing.T, vcfText string, checks []check) {
	t.Helper()
	runAllChunkSizes(t, vcfText, checks)
	runAllChunkSizes(t, insertCRs(vcfText), checks)
}

// runInsensitiveToTrailingNewline additionally verifies that a trailing
// newline on the last line does not change the scenario.
func runInsensitiveToTrailingNewline(t *testing.T, vcfText string, checks []check) {
	t.Helper()
	runWithAndWithoutCR(t, vcfText, checks)
	runWithAndWithoutCR(t, vcfText+"\n", checks)
}

func TestNotAVCFFile(t *testing.T) {
	runInsensitiveToTrailingNewline(t, "text\nfile", []check{
		{"feed", "E:VCF files must start with '##fileformat'"},
		{"eof", "!EOF"},
	})
}

func TestMalformedMetaInfo(t *testing.T) {
	runInsensitiveToTrailingNewline(t, "##fileformat=VCFv4.0\nKEY", []check{
		{"feed", "E:Malformed meta-information line"},
	})
	runInsensitiveToTrailingNewline(t, "##fileformat=VCFv4.0\nKEY=VALUE", []check{
		{"feed", "E:Malformed meta-information line"},
	})
	// A data line with no header line in between parses as a bad
	// meta-information line.
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n1\t100000\t.\tC\tG\t.\t.\t.", []check{
			{"feed", "E:Malformed meta-information line"},
		})
}

func TestMalformedHeaderLine(t *testing.T) {
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER", []check{
			{"feed", "E:Malformed VCF header line"},
		})
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFORM", []check{
			{"feed", "E:Malformed VCF header line"},
		})
}

func TestNoDataLines(t *testing.T) {
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO", []check{
			{"feed", ""},
			{"meta", ""},
			{"genotypes?", "no genotypes"},
			{"samples", "."},
			{"eof", ""},
		})
}

func TestFormatColumnWithoutSamples(t *testing.T) {
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT", []check{
			{"feed", ""},
			{"meta", ""},
			{"genotypes?", "with genotypes"},
			{"samples", "."},
			{"eof", ""},
		})
}

func TestHeaderWithSamples(t *testing.T) {
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\tS3", []check{
			{"feed", ""},
			{"fileformat", "[VCFv4.0]"},
			{"meta", ""},
			{"genotypes?", "with genotypes"},
			{"samples", "[S1,S2,S3]"},
			{"eof", ""},
		})
}

func TestClearLineAtEOF(t *testing.T) {
	runInsensitiveToTrailingNewline(t,
		"##fileformat=VCFv4.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO", []check{
			{"feed", ""},
			{"eof", ""},
			{"clear", ";"},
			{"eof", ""},
		})
}

func TestManyThingsAtOnce(t *testing.T) {
	const data = "##fileformat=VCFv4.0\n" +
		"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\tS3\n" +
		"1\t100000\trs123;rs456\tC\tG\t10\t.\t.\tGT\t0|1\t1/.\t1/0\n" +
		"2\t200000\t.\tC\tG,T\t.\tPASS\tNS=3;DP=14;AF=0.5;DB;H2\tGT\t0|0\t0|1\t1|2"
	runInsensitiveToTrailingNewline(t, data, []check{
		{"feed", ""},
		{"fileformat", "[VCFv4.0]"},
		{"meta", "FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">"},
		{"samples#", "S#=3"},
		{"line", "@4"},
		{"loc", "L:1@100000"},
		{"ids", "ID:[rs123,rs456]"},
		{"alleles", "R:C;A:G"},
		{"quality", "Q:10"},
		{"format", "GF:OK"},
		{"capture", "GT:OK"},
		{"genotype", "GT:[0,1]"},
		{"avail", "GT:AVAIL"},
		{"genotype", "GT:[1,-1]"},
		{"avail", "GT:AVAIL"},
		{"genotype", "GT:[1,0]"},
		{"avail", "GT:NO MORE"},
		{"clear", ";"},
		{"line", "@5"},
		{"loc", "L:2@200000"},
		{"alleles", "R:C;A:[G,T]"},
		{"quality", "Q:"},
		{"filters", "F:PASS"},
		{"info", "I:[NS=3,DP=14,AF=0.5,DB,H2]"},
		{"clear", ";"},
		{"eof", ""},
	})
}

func TestMissingMandatoryField(t *testing.T) {
	const data = "##fileformat=VCFv4.0\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100000\t.\tC\n" +
		"1\t100000\t.\tC\tG\t.\t.\t.\n" +
		"1\t100000\t.\tC\tG"
	runInsensitiveToTrailingNewline(t, data, []check{
		{"feed", ""},
		{"line", "@3"},
		{"alleles", `E:Missing mandatory VCF field "ALT"`},
		{"line", "@4"},
		{"filters", "F:."},
		{"clear", ";"},
		{"line", "@5"},
		{"filters", `E:Missing mandatory VCF field "QUAL"`},
	})
}

func TestListFields(t *testing.T) {
	// Dot entries inside a list are skipped; a lone dot is an empty
	// list.
	const data = "##fileformat=VCFv4.0\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t1000\t.\tC\t.\t.\t.\t.\n" +
		"1\t1000\tID1;.\tC\tG,.\t.\tF1;.\t.\n" +
		"1\t1000\t.;ID1\tC\t.,G\t.\t.;F1\t."
	runWithAndWithoutCR(t, data, []check{
		{"feed", ""},
		{"ids", "ID:."},
		{"alleles", "R:C;A:."},
		{"filters", "F:."},
		{"clear", ";"},
		{"ids", "ID:ID1"},
		{"alleles", "R:C;A:G"},
		{"filters", "F:F1"},
		{"clear", ";"},
		{"ids", "ID:ID1"},
		{"alleles", "R:C;A:G"},
		{"filters", "F:F1"},
	})
}

func TestPosColumnErrors(t *testing.T) {
	const header = "##fileformat=VCFv4.0\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"
	runWithAndWithoutCR(t, header+"1\t10x0\t.\tC\tG\t.\t.\t.", []check{
		{"feed", ""},
		{"loc", "E:Invalid data line format"},
	})
	runWithAndWithoutCR(t, header+"1\t4294967296\t.\tC\tG\t.\t.\t.", []check{
		{"feed", ""},
		{"loc", "E:Integer overflow in the POS column"},
	})
	runWithAndWithoutCR(t, header+"1\t.\t.\tC\tG\t.\t.\t.", []check{
		{"feed", ""},
		{"loc", "E:Missing an integer in the POS column"},
	})
}

// TestResync checks that after a data-line error, ClearLine leaves the
// scanner in the same state as a successfully completed record.
func TestResync(t *testing.T) {
	const data = "##fileformat=VCFv4.0\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\tbogus\t.\tC\tG\t.\t.\t.\n" +
		"2\t200\t.\tA\tT\t.\t.\t."
	runInsensitiveToTrailingNewline(t, data, []check{
		{"feed", ""},
		{"loc", "E:Missing an integer in the POS column"},
		{"loc", "L:2@200"},
		{"alleles", "R:A;A:T"},
		{"clear", ";"},
		{"eof", ""},
	})
}
