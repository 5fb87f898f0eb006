package vcf

import (
	"github.com/pkg/errors"
)

// Event is the outcome of a parsing operation.
type Event int

const (
	// NeedMoreData: the parser needs the next input buffer to finish
	// the current operation.  Call Feed to resume it.
	NeedMoreData Event = iota
	// OK: the requested field (or the header) has been parsed and its
	// value is available.
	OK
	// OKWithWarnings: like OK, but the parser noticed issues along the
	// way.  Use Warnings to retrieve them.
	OKWithWarnings
	// Error: parsing failed.  Use Err for the message and LineNumber
	// for the position.  A header error is fatal to the Scanner; a
	// data-line error can be skipped with ClearLine.
	Error
)

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e {
	case NeedMoreData:
		return "NeedMoreData"
	case OK:
		return "OK"
	case OKWithWarnings:
		return "OKWithWarnings"
	case Error:
		return "Error"
	}
	return "invalid event"
}

// Warning describes a non-fatal issue found while parsing.
type Warning struct {
	LineNumber int
	Message    string
}

// state is the join of header progress and per-record progress.  The
// order matters: skip-to-field logic advances through data-line states
// by comparing them.
type state int

const (
	parsingFileFormat state = iota
	parsingMetaInfoKey
	parsingMetaInfoValue
	parsingHeaderColumns
	parsingSampleIDs
	parsingChrom
	parsingPos
	parsingID
	parsingRef
	parsingAlt
	parsingQuality
	parsingFilter
	parsingInfoField
	parsingGenotypeFormat
	parsingGenotypes
	endOfDataLine
	skippingToNextLine
	peekingBeyondNewline
)

const numMandatoryColumns = 8

// headerLineColumns names the data-line columns; the two extra entries
// serve the missing-mandatory-field diagnostics.
var headerLineColumns = [numMandatoryColumns + 2]string{
	"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO",
	"FORMAT", "GENOTYPE",
}

// Scanner is a resumable parser for one VCF stream.
//
// The Scanner parses the header first (driven by Feed alone), then data
// lines one field at a time through the Parse* methods.  Each method
// either completes, or returns NeedMoreData to ask for the next buffer;
// the following Feed resumes it where it stopped.  Fields may be skipped
// by simply not asking for them: requesting a later field fast-forwards
// over the ones in between.
//
// A Scanner is not safe for concurrent use, but independent Scanners
// share nothing.
type Scanner struct {
	tok tokenizer

	state        state
	fieldsToSkip int

	currentMetaInfoKey string
	headerColumnsOK    int

	header Header

	err             error
	warnings        []Warning
	pendingWarnings bool

	// Destinations for the field being parsed.  They stay set across
	// NeedMoreData so that Feed can resume writing into them.
	outChrom   *string
	outPos     *uint32
	outIDs     *[]string
	outRef     *string
	outAlts    *[]string
	outQuality *string
	outFilters *[]string

	nextListIndex int
	numberLen     int

	allelesParsed bool
	altCount      int

	info []string

	// formatKeys canonicalizes FORMAT key bytes to one durable string
	// per key for the lifetime of the Scanner.
	formatKeys   map[string]string
	keyPositions genotypeKeyPositions

	currentGenotypeFieldIndex int
	currentGenotypeValueIndex int
	genotypeValues            []genotypeValue

	gt       []int
	phasedGT bool
}

// NewScanner returns a Scanner ready to be fed the first buffer of a VCF
// stream.
func NewScanner() *Scanner {
	return &Scanner{
		tok:        newTokenizer(),
		header:     Header{metaInfo: map[string][]string{}},
		formatKeys: map[string]string{},
	}
}

// Header returns the parsed file header.  It is fully populated once the
// initial series of Feed calls has returned OK.
func (s *Scanner) Header() *Header { return &s.header }

// LineNumber returns the current one-based line number.  The number
// advances as soon as the last token of a line has been consumed.
func (s *Scanner) LineNumber() int { return s.tok.line }

// Err returns the error behind the most recent Error event.
func (s *Scanner) Err() error { return s.err }

// Warnings returns all warnings accumulated so far.
func (s *Scanner) Warnings() []Warning { return s.warnings }

// AtEOF reports whether the entire input stream has been consumed.
func (s *Scanner) AtEOF() bool { return s.tok.atEOF() }

// Feed supplies the next chunk of input, either right after NewScanner
// (to parse the header) or after any operation returned NeedMoreData.
// An empty buffer signals end-of-input.  The buffer must stay intact
// until the next Feed call: the Parse* methods that follow keep reading
// from it until one of them returns NeedMoreData.
func (s *Scanner) Feed(buf []byte) Event {
	s.tok.setNewBuffer(buf)

	if s.state == parsingGenotypes {
		return s.continueParsingGenotype()
	}

	if s.state <= parsingPos {
		if s.state < parsingChrom {
			return s.continueParsingHeader()
		}
		if s.state == parsingChrom {
			if pe := s.parseString(parsingPos); pe != OK {
				return pe
			}
			*s.outChrom = string(s.tok.token)
		}
		return s.continueParsingPos()
	}

	for ; s.fieldsToSkip > 0; s.fieldsToSkip-- {
		if !s.tok.skipToken(s.tok.findCharFromSet(&newlineOrTab)) {
			return NeedMoreData
		}
		if s.tok.atEOL() {
			missing := int(s.state-parsingChrom) + 1 - s.fieldsToSkip
			s.fieldsToSkip = 0
			return s.missingMandatoryFieldError(missing)
		}
	}

	switch s.state {
	case parsingID:
		return s.continueParsingIDs()
	case parsingRef:
		// ParseAlleles covers both REF and ALT; once REF is in,
		// proceed to ALT.
		if pe := s.parseString(parsingAlt); pe != OK {
			return pe
		}
		*s.outRef = string(s.tok.token)
		fallthrough
	case parsingAlt:
		return s.continueParsingAlts()
	case parsingQuality:
		return s.continueParsingQuality()
	case parsingFilter:
		return s.continueParsingFilters()
	case parsingInfoField:
		return s.continueParsingInfo()
	case parsingGenotypeFormat:
		return s.continueParsingGenotypeFormat()
	case skippingToNextLine:
		if !s.tok.skipToken(s.tok.findNewline()) {
			return NeedMoreData
		}
		if s.tok.bufferIsEmpty() && !s.tok.atEOF() {
			s.state = peekingBeyondNewline
			return NeedMoreData
		}
		fallthrough
	case peekingBeyondNewline:
		s.resetDataLine()
		return OK
	}

	return s.usageError("Feed called with no operation in progress")
}

// ParseLoc parses the CHROM and POS fields into the given destinations.
func (s *Scanner) ParseLoc(chrom *string, pos *uint32) Event {
	if s.state != parsingChrom {
		if s.state < parsingChrom {
			return s.usageError("VCF header must be parsed first")
		}
		return s.usageError("ClearLine must be called before ParseLoc")
	}

	s.outChrom = chrom
	s.outPos = pos
	*pos = 0
	s.numberLen = 0

	if pe := s.parseString(parsingPos); pe != OK {
		return pe
	}
	*chrom = string(s.tok.token)

	return s.continueParsingPos()
}

// ParseIDs parses the ID field.  A "." column yields an empty list.
func (s *Scanner) ParseIDs(ids *[]string) Event {
	s.outIDs = ids
	s.nextListIndex = 0

	if pe := s.skipToState(parsingID); pe != OK {
		return pe
	}
	return s.continueParsingIDs()
}

// ParseAlleles parses the REF and ALT fields.  A "." ALT column yields
// an empty list.
func (s *Scanner) ParseAlleles(ref *string, alts *[]string) Event {
	s.outRef = ref
	s.outAlts = alts
	s.nextListIndex = 0

	if pe := s.skipToState(parsingRef); pe != OK {
		return pe
	}

	if pe := s.parseString(parsingAlt); pe != OK {
		return pe
	}
	*ref = string(s.tok.token)

	return s.continueParsingAlts()
}

// ParseQuality parses the QUAL field as its raw text; "." becomes the
// empty string.
func (s *Scanner) ParseQuality(quality *string) Event {
	s.outQuality = quality

	if pe := s.skipToState(parsingQuality); pe != OK {
		return pe
	}
	return s.continueParsingQuality()
}

// ParseFilters parses the FILTER field.  "PASS" is reported verbatim; a
// "." column yields an empty list.
func (s *Scanner) ParseFilters(filters *[]string) Event {
	s.outFilters = filters
	s.nextListIndex = 0

	if pe := s.skipToState(parsingFilter); pe != OK {
		return pe
	}
	return s.continueParsingFilters()
}

// ParseInfo parses the INFO field; retrieve it with Info.
func (s *Scanner) ParseInfo() Event {
	s.info = s.info[:0]

	if pe := s.skipToState(parsingInfoField); pe != OK {
		return pe
	}
	return s.continueParsingInfo()
}

// Info returns the semicolon-separated INFO entries parsed by ParseInfo,
// each either "KEY=VALUE" or a bare flag.  A "." column yields an empty
// list.  The slice is valid until the next ParseInfo call.
func (s *Scanner) Info() []string { return s.info }

// ClearLine skips the remaining part of the current data line.  Call it
// after each line, even one parsed to completion: it also determines
// whether end-of-file has been reached.  After OK the Scanner is ready
// for the next record, and any data-line error has been discarded.
func (s *Scanner) ClearLine() Event {
	if !s.tok.atEOF() {
		if s.state != peekingBeyondNewline {
			if s.state != endOfDataLine &&
				!s.tok.skipToken(s.tok.findNewline()) {
				s.state = skippingToNextLine
				return NeedMoreData
			}

			if s.tok.bufferIsEmpty() {
				s.state = peekingBeyondNewline
				return NeedMoreData
			}
		}
	}

	s.resetDataLine()
	return OK
}

func (s *Scanner) resetDataLine() {
	s.state = parsingChrom
	s.allelesParsed = false
}

func (s *Scanner) okEvent() Event {
	if s.pendingWarnings {
		s.pendingWarnings = false
		return OKWithWarnings
	}
	return OK
}

func (s *Scanner) headerError(msg string) Event {
	s.err = errors.New(msg)
	return Error
}

func (s *Scanner) dataLineError(msg string) Event {
	s.err = errors.New(msg)
	return Error
}

// usageError reports an out-of-order call.  Unlike header and data-line
// errors it indicates a bug in the caller, not in the input.
func (s *Scanner) usageError(msg string) Event {
	s.err = errors.New(msg)
	return Error
}

func (s *Scanner) missingMandatoryFieldError(fieldIndex int) Event {
	s.state = endOfDataLine
	return s.dataLineError(
		`Missing mandatory VCF field "` + headerLineColumns[fieldIndex] + `"`)
}

// parseString reads one whole tab-delimited field and leaves it in the
// tokenizer's token.
func (s *Scanner) parseString(target state) Event {
	if !s.tok.prepareTokenOrAccumulate(s.tok.findCharFromSet(&newlineOrTab)) {
		return NeedMoreData
	}
	if s.tok.atEOL() {
		return s.missingMandatoryFieldError(int(target - parsingChrom))
	}
	s.state = target
	return OK
}

// parseStringList reads one field made of sub-tokens separated by the
// extra byte in set, appending them to *container.  Dot sub-tokens are
// skipped, so a field of just "." produces an empty list.  Existing
// elements of *container are overwritten before it grows.
func (s *Scanner) parseStringList(
	target state, container *[]string, set *[256]bool) Event {
	for {
		if !s.tok.prepareTokenOrAccumulate(s.tok.findCharFromSet(set)) {
			return NeedMoreData
		}
		if s.tok.atEOL() {
			return s.missingMandatoryFieldError(int(target - parsingChrom))
		}
		if !s.tok.tokenIsDot() {
			if s.nextListIndex < len(*container) {
				(*container)[s.nextListIndex] = string(s.tok.token)
			} else {
				*container = append(*container, string(s.tok.token))
			}
			s.nextListIndex++
		}
		if s.tok.term == '\t' {
			break
		}
	}
	*container = (*container)[:s.nextListIndex]
	s.state = target
	return OK
}

// skipToState consumes whole fields until the machine stands at the
// requested one.  A newline encountered on the way means a mandatory
// field is missing.
func (s *Scanner) skipToState(target state) Event {
	if s.state < parsingChrom {
		return s.usageError("VCF header must be parsed first")
	}
	if s.state > target {
		return s.usageError("ClearLine must be called before re-parsing a field")
	}

	for s.state < target {
		if !s.tok.skipToken(s.tok.findCharFromSet(&newlineOrTab)) {
			s.fieldsToSkip = int(target - s.state)
			s.state = target
			return NeedMoreData
		}
		if s.tok.atEOL() {
			return s.missingMandatoryFieldError(int(s.state-parsingChrom) + 1)
		}
		s.state++
	}
	return OK
}

func (s *Scanner) continueParsingHeader() Event {
	for {
		switch s.state {
		case parsingFileFormat:
			if !s.tok.prepareTokenOrAccumulate(s.tok.findNewline()) {
				return NeedMoreData
			}

			key, value, ok := s.tok.keyValue('=')
			if !ok || string(key) != "##fileformat" {
				return s.headerError(
					"VCF files must start with '##fileformat'")
			}
			s.header.fileFormat = string(value)

			s.state = parsingMetaInfoKey

		case parsingMetaInfoKey:
			if !s.tok.prepareTokenOrAccumulate(
				s.tok.findCharFromSet(&newlineOrTabOrEquals)) {
				return NeedMoreData
			}

			if s.tok.atEOL() {
				return s.headerError("Malformed meta-information line")
			}

			if s.tok.term == '\t' {
				// Start of the header line: the first column arrived
				// as "#CHROM" terminated by a tab.
				tok := s.tok.token
				if len(tok) == 0 || string(tok[1:]) != headerLineColumns[0] {
					return s.headerError("Malformed meta-information line")
				}
				s.headerColumnsOK = 1
				s.state = parsingHeaderColumns
				continue
			}

			// Found an equals sign: save the key and move on to the
			// value.
			key := s.tok.token
			if len(key) < 3 || key[0] != '#' || key[1] != '#' {
				return s.headerError("Malformed meta-information line")
			}
			s.currentMetaInfoKey = string(key[2:])

			s.state = parsingMetaInfoValue

		case parsingMetaInfoValue:
			if !s.tok.prepareTokenOrAccumulate(s.tok.findNewline()) {
				return NeedMoreData
			}

			if s.tok.term == termEOF {
				return s.headerError(
					"Unexpected end of file while parsing VCF file header")
			}

			s.header.addMetaInfo(s.currentMetaInfoKey, string(s.tok.token))

			// Back to the next meta-information key.
			s.state = parsingMetaInfoKey

		case parsingHeaderColumns:
			for {
				if !s.tok.prepareTokenOrAccumulate(
					s.tok.findCharFromSet(&newlineOrTab)) {
					return NeedMoreData
				}

				if string(s.tok.token) != headerLineColumns[s.headerColumnsOK] {
					return s.headerError("Malformed VCF header line")
				}

				s.headerColumnsOK++

				if s.tok.atEOL() {
					if s.headerColumnsOK < numMandatoryColumns {
						return s.headerError("Malformed VCF header line")
					}
					if s.headerColumnsOK > numMandatoryColumns {
						// FORMAT is declared, but there are no
						// sample columns.
						s.header.genotypeInfoPresent = true
					}
					return s.endOfHeaderLine()
				}

				if s.headerColumnsOK > numMandatoryColumns {
					break
				}
			}

			s.header.genotypeInfoPresent = true
			s.state = parsingSampleIDs

		case parsingSampleIDs:
			for {
				if !s.tok.prepareTokenOrAccumulate(
					s.tok.findCharFromSet(&newlineOrTab)) {
					return NeedMoreData
				}

				s.header.sampleIDs = append(
					s.header.sampleIDs, string(s.tok.token))

				if s.tok.term != '\t' {
					break
				}
			}
			return s.endOfHeaderLine()
		}
	}
}

// endOfHeaderLine finishes the header.  When the header line ended
// exactly at the end of the buffer, one more Feed is requested so that
// AtEOF is meaningful immediately after the header.
func (s *Scanner) endOfHeaderLine() Event {
	if s.tok.bufferIsEmpty() && !s.tok.atEOF() {
		s.state = peekingBeyondNewline
		return NeedMoreData
	}

	s.resetDataLine()
	return OK
}

func (s *Scanner) continueParsingPos() Event {
	switch s.tok.parseUint(s.outPos, &s.numberLen) {
	case endOfBuffer:
		return NeedMoreData
	case integerOverflow:
		return s.dataLineError("Integer overflow in the POS column")
	}

	if s.tok.atEOL() {
		// The line ended right after POS; its newline is consumed, so
		// ClearLine must not skip another line.
		s.state = endOfDataLine
	}

	if s.numberLen == 0 {
		return s.dataLineError("Missing an integer in the POS column")
	}

	if s.tok.term != '\t' {
		return s.dataLineError("Invalid data line format")
	}

	s.state = parsingID
	return OK
}

func (s *Scanner) continueParsingIDs() Event {
	return s.parseStringList(parsingRef, s.outIDs, &newlineOrTabOrSemicolon)
}

func (s *Scanner) continueParsingAlts() Event {
	pe := s.parseStringList(parsingQuality, s.outAlts, &newlineOrTabOrComma)
	if pe == OK {
		s.allelesParsed = true
		s.altCount = s.nextListIndex
	}
	return pe
}

func (s *Scanner) continueParsingQuality() Event {
	if pe := s.parseString(parsingFilter); pe != OK {
		return pe
	}
	if !s.tok.tokenIsDot() {
		*s.outQuality = string(s.tok.token)
	} else {
		*s.outQuality = ""
	}
	return OK
}

func (s *Scanner) continueParsingFilters() Event {
	return s.parseStringList(
		parsingInfoField, s.outFilters, &newlineOrTabOrSemicolon)
}

func (s *Scanner) continueParsingInfo() Event {
	for {
		if !s.tok.prepareTokenOrAccumulate(
			s.tok.findCharFromSet(&newlineOrTabOrSemicolon)) {
			return NeedMoreData
		}
		if s.tok.atEOL() {
			// The FORMAT column is absent on this line.
			s.state = endOfDataLine
			return OK
		}
		if !s.tok.tokenIsDot() {
			s.info = append(s.info, string(s.tok.token))
		}
		if s.tok.term == '\t' {
			break
		}
	}

	s.state = parsingGenotypeFormat
	return OK
}
