package vcf_test

import (
	"fmt"

	"github.com/grailbio/vcf"
)

// Example parses a small two-sample VCF supplied as a single buffer.
// Real callers loop on NeedMoreData and Feed the file chunk by chunk.
func Example() {
	const data = "##fileformat=VCFv4.0\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
		"1\t100000\trs123\tC\tG\t10\tPASS\tNS=2\tGT\t0|1\t1/1\n"

	sc := vcf.NewScanner()
	if sc.Feed([]byte(data)) != vcf.OK {
		panic(sc.Err())
	}
	fmt.Println("samples:", sc.Header().SampleIDs())

	var (
		chrom string
		pos   uint32
		ref   string
		alts  []string
	)
	if sc.ParseLoc(&chrom, &pos) != vcf.OK {
		panic(sc.Err())
	}
	if sc.ParseAlleles(&ref, &alts) != vcf.OK {
		panic(sc.Err())
	}
	fmt.Printf("%s:%d %s>%s\n", chrom, pos, ref, alts[0])

	if sc.ParseGenotypeFormat() != vcf.OK {
		panic(sc.Err())
	}
	sc.CaptureGT()
	for sc.GenotypeAvailable() {
		if sc.ParseGenotype() != vcf.OK {
			panic(sc.Err())
		}
		fmt.Println(sc.GT(), sc.PhasedGT())
	}

	// Output:
	// samples: [S1 S2]
	// 1:100000 C>G
	// [0 1] true
	// [1 1] false
}
