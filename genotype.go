package vcf

import (
	"math"

	gunsafe "github.com/grailbio/base/unsafe"
)

// genotypeValueType enumerates the kinds of per-sample values a FORMAT
// key can be captured into.  Only GT decoding is implemented; the other
// kinds reserve room for the capture API to grow.
type genotypeValueType int

const (
	genotypeFlag genotypeValueType = iota
	genotypeIntScalar
	genotypeIntVector
	genotypeStringScalar
	genotypeStringVector
	genotypeCharScalar
	genotypeCharVector
	genotypeGT
)

// genotypeValue is one slot of the per-record capture table, indexed by
// FORMAT key position.  Uncaptured slots are skipped byte-for-byte when
// genotype fields are parsed.
type genotypeValue struct {
	captured bool
	typ      genotypeValueType
	gt       *[]int
}

// genotypeKeyPositions records where each FORMAT key sits in the current
// record, 1-based.  GT has a dedicated slot.
type genotypeKeyPositions struct {
	numberOfPositions int
	gt                int
	otherKeys         map[string]int
}

func (g *genotypeKeyPositions) clear() {
	g.numberOfPositions = 0
	g.gt = 0
	for k := range g.otherKeys {
		delete(g.otherKeys, k)
	}
}

// internFormatKey returns the canonical string for a FORMAT key, adding
// it to the per-Scanner key set on first sight.  The unsafe view avoids
// a copy on the (common) hit path.
func (s *Scanner) internFormatKey(b []byte) string {
	if k, ok := s.formatKeys[gunsafe.BytesToString(b)]; ok {
		return k
	}
	k := string(b)
	s.formatKeys[k] = k
	return k
}

// ParseGenotypeFormat parses the FORMAT column and rebuilds the key
// index for the current record.  When the column ends the line and the
// header declared samples, the record is in error.  A record whose GT
// key is not in the first position parses with a warning.
func (s *Scanner) ParseGenotypeFormat() Event {
	s.keyPositions.clear()
	s.pendingWarnings = false

	if pe := s.skipToState(parsingGenotypeFormat); pe != OK {
		return pe
	}
	return s.continueParsingGenotypeFormat()
}

func (s *Scanner) continueParsingGenotypeFormat() Event {
	for {
		if !s.tok.prepareTokenOrAccumulate(
			s.tok.findCharFromSet(&newlineOrTabOrColon)) {
			return NeedMoreData
		}
		if s.tok.atEOL() {
			s.state = endOfDataLine
			if len(s.header.sampleIDs) == 0 {
				return s.okEvent()
			}
			return s.dataLineError("No genotype information present")
		}

		key := s.internFormatKey(s.tok.token)
		if key == "GT" {
			if s.keyPositions.numberOfPositions != 0 {
				s.warnings = append(s.warnings, Warning{
					LineNumber: s.tok.line,
					Message:    "GT is not the first FORMAT key",
				})
				s.pendingWarnings = true
			}
			s.keyPositions.numberOfPositions++
			s.keyPositions.gt = s.keyPositions.numberOfPositions
		} else {
			if s.keyPositions.otherKeys == nil {
				s.keyPositions.otherKeys = map[string]int{}
			}
			s.keyPositions.numberOfPositions++
			s.keyPositions.otherKeys[key] = s.keyPositions.numberOfPositions
		}

		if s.tok.term == '\t' {
			break
		}
	}

	s.resetGenotypeValues()
	s.state = parsingGenotypes
	return s.okEvent()
}

func (s *Scanner) resetGenotypeValues() {
	for i := range s.genotypeValues {
		s.genotypeValues[i] = genotypeValue{}
	}
	s.currentGenotypeFieldIndex = 0
	s.numberLen = 0
}

func (s *Scanner) allocGenotypeValue(index int) *genotypeValue {
	for len(s.genotypeValues) <= index {
		s.genotypeValues = append(s.genotypeValues, genotypeValue{})
	}
	return &s.genotypeValues[index]
}

// CaptureGT arms decoding of GT values by the following ParseGenotype
// calls.  It reports false, and does nothing, if the current record's
// FORMAT column has no GT key.  Call it after each ParseGenotypeFormat.
func (s *Scanner) CaptureGT() bool {
	gtIndex := s.keyPositions.gt
	if gtIndex == 0 {
		return false
	}
	value := s.allocGenotypeValue(gtIndex - 1)
	value.captured = true
	value.typ = genotypeGT
	value.gt = &s.gt
	return true
}

// GT returns the allele indices decoded by the previous ParseGenotype
// call.  A missing allele ('.') is reported as -1.  The slice is valid
// until the next ParseGenotype call.
func (s *Scanner) GT() []int { return s.gt }

// PhasedGT reports whether the genotype decoded by the previous
// ParseGenotype call was phased.  With more than two alleles, the
// last-seen separator wins.
func (s *Scanner) PhasedGT() bool { return s.phasedGT }

// GenotypeAvailable reports whether at least one more genotype field
// remains on the current line.  The caller may use it instead of
// counting fields against the number of samples.
func (s *Scanner) GenotypeAvailable() bool { return s.tok.term == '\t' }

// ParseGenotype parses the next genotype field.  Sub-values whose FORMAT
// key was not captured are skipped without copying.
func (s *Scanner) ParseGenotype() Event {
	if s.state != parsingGenotypes {
		return s.usageError(
			"ParseGenotypeFormat must be called before ParseGenotype")
	}

	if s.currentGenotypeFieldIndex >= len(s.header.sampleIDs) {
		return s.dataLineError(
			"The number of genotype fields exceeds the number of samples")
	}

	s.currentGenotypeValueIndex = 0

	return s.continueParsingGenotype()
}

func (s *Scanner) continueParsingGenotype() Event {
	for {
		var value *genotypeValue
		if s.currentGenotypeValueIndex < len(s.genotypeValues) {
			value = &s.genotypeValues[s.currentGenotypeValueIndex]
		}

		if value == nil || !value.captured {
			if !s.tok.skipToken(
				s.tok.findCharFromSet(&newlineOrTabOrColon)) {
				return NeedMoreData
			}
			if s.tok.atEOL() {
				s.state = endOfDataLine
				return OK
			}
		} else {
			if !s.tok.prepareTokenOrAccumulate(
				s.tok.findCharFromSet(&newlineOrTabOrColon)) {
				return NeedMoreData
			}

			if s.tok.atEOL() {
				s.state = endOfDataLine
			}

			if value.typ == genotypeGT {
				if msg := s.parseGT(value.gt); msg != "" {
					return s.dataLineError(msg)
				}
			}

			if s.tok.atEOL() {
				return OK
			}
		}

		if s.tok.term == '\t' {
			s.currentGenotypeFieldIndex++
			return OK
		}

		s.currentGenotypeValueIndex++
		if s.currentGenotypeValueIndex >= s.keyPositions.numberOfPositions {
			return s.dataLineError("Too many genotype info fields")
		}
	}
}

// parseGT decodes the current token as a GT value like "0|1", "1/.", or
// "2" into *dest.  It returns an error message, or "" on success.
func (s *Scanner) parseGT(dest *[]int) string {
	*dest = (*dest)[:0]

	token := s.tok.token
	remaining := len(token)
	if remaining == 0 {
		return "Empty GT value"
	}

	idx := 0
	for {
		if token[idx] == '.' {
			*dest = append(*dest, -1)
			idx++
			remaining--
		} else {
			allele := uint32(token[idx]) - '0'
			if allele > 9 {
				return "Invalid character in GT value"
			}
			for {
				remaining--
				if remaining <= 0 {
					break
				}
				idx++
				digit := uint32(token[idx]) - '0'
				if digit > 9 {
					break
				}
				if allele > math.MaxUint32/10 ||
					(allele == math.MaxUint32/10 && digit > math.MaxUint32%10) {
					return "Integer overflow in allele index"
				}
				allele = allele*10 + digit
			}

			*dest = append(*dest, int(allele))

			if s.allelesParsed && uint64(allele) > uint64(s.altCount) {
				return "Allele index exceeds the number of alleles"
			}
		}

		if remaining == 0 {
			return ""
		}
		switch token[idx] {
		case '/':
			s.phasedGT = false
		case '|':
			s.phasedGT = true
		default:
			return "Invalid character in GT value"
		}
		idx++
		remaining--
	}
}
