package vcf

import (
	"bytes"
	"math"
)

// termEOF is the terminator value reported when a token was ended by the
// end of the input rather than by a delimiter byte.
const termEOF = -1

// Delimiter classes used by the scanner.  Each is a 256-entry lookup
// table so that classifying a byte is a single indexed load.
var (
	// CHROM, POS, REF and QUAL fields, and skipped fields.
	newlineOrTab [256]bool
	// Meta-information lines and the first header line column.
	newlineOrTabOrEquals [256]bool
	// ID, FILTER and INFO fields.
	newlineOrTabOrSemicolon [256]bool
	// ALT field.
	newlineOrTabOrComma [256]bool
	// FORMAT and genotype fields.
	newlineOrTabOrColon [256]bool
)

func init() {
	for _, c := range []byte{'\n', '\t'} {
		newlineOrTab[c] = true
		newlineOrTabOrEquals[c] = true
		newlineOrTabOrSemicolon[c] = true
		newlineOrTabOrComma[c] = true
		newlineOrTabOrColon[c] = true
	}
	newlineOrTabOrEquals['='] = true
	newlineOrTabOrSemicolon[';'] = true
	newlineOrTabOrComma[','] = true
	newlineOrTabOrColon[':'] = true
}

// intParseResult reports how a parseUint call ended.
type intParseResult int

const (
	// endOfNumber: a non-digit byte (or EOF) ended the number.  The
	// terminator has been consumed and recorded.
	endOfNumber intParseResult = iota
	// integerOverflow: the next digit would overflow uint32.
	integerOverflow
	// endOfBuffer: the buffer ran out before a non-digit was seen.
	endOfBuffer
)

// tokenizer finds field boundaries in a stream of caller-owned buffers.
// It borrows the current buffer; the only bytes it owns are the
// accumulator, which stitches together a token that straddles buffers.
// Tokens are views into either the current buffer or the accumulator and
// are valid until the next prepareTokenOrAccumulate or skipToken call.
type tokenizer struct {
	buf        []byte
	eofReached bool

	accumulating bool
	accumulator  []byte

	token []byte
	// term is the byte that ended the last token, or termEOF.
	term int
	// line is one-based and increments exactly when a '\n' terminator
	// is consumed.
	line int
}

func newTokenizer() tokenizer {
	return tokenizer{line: 1}
}

// setNewBuffer installs the next input buffer.  An empty buffer signals
// end-of-input.
func (t *tokenizer) setNewBuffer(buf []byte) {
	t.buf = buf
	t.eofReached = len(buf) == 0
}

func (t *tokenizer) bufferIsEmpty() bool { return len(t.buf) == 0 }

func (t *tokenizer) atEOF() bool { return t.eofReached }

// findNewline returns the index of the next '\n' in the buffer, or -1.
func (t *tokenizer) findNewline() int {
	return bytes.IndexByte(t.buf, '\n')
}

// findCharFromSet returns the index of the first byte in the buffer that
// belongs to the given delimiter class, or -1.
func (t *tokenizer) findCharFromSet(set *[256]bool) int {
	for i, c := range t.buf {
		if set[c] {
			return i
		}
	}
	return -1
}

func (t *tokenizer) setTerminator(term int) {
	t.term = term
}

func (t *tokenizer) setTerminatorAndCountLine(term int) {
	t.term = term
	if term == '\n' {
		t.line++
	}
}

func (t *tokenizer) advance(n int) {
	t.buf = t.buf[n:]
}

// prepareTokenOrAccumulate emits the token that ends at the delimiter
// index end (as returned by findNewline or findCharFromSet) and steps
// past the delimiter.  If end is -1 and more input may follow, the
// remaining buffer is copied into the accumulator and false is returned;
// the caller must obtain a new buffer and retry.  If end is -1 at EOF,
// the accumulated bytes become the final token with terminator termEOF.
// A '\r' immediately before a '\n' delimiter is stripped from the token,
// even when the two bytes arrived in different buffers.
func (t *tokenizer) prepareTokenOrAccumulate(end int) bool {
	if end < 0 {
		if !t.eofReached {
			if t.accumulating {
				t.accumulator = append(t.accumulator, t.buf...)
			} else {
				t.accumulating = true
				t.accumulator = append(t.accumulator[:0], t.buf...)
			}
			return false
		}

		// End of input: return the accumulated bytes as the last token.
		t.setTerminator(termEOF)
		if !t.accumulating {
			t.token = nil
		} else {
			t.accumulating = false
			t.token = t.accumulator
		}
		return true
	}

	t.setTerminatorAndCountLine(int(t.buf[end]))

	if !t.accumulating {
		if end > 0 && t.buf[end] == '\n' && t.buf[end-1] == '\r' {
			t.token = t.buf[:end-1]
		} else {
			t.token = t.buf[:end]
		}
	} else {
		t.accumulating = false
		if end > 0 {
			if t.buf[end] == '\n' && t.buf[end-1] == '\r' {
				t.accumulator = append(t.accumulator, t.buf[:end-1]...)
			} else {
				t.accumulator = append(t.accumulator, t.buf[:end]...)
			}
		} else if t.buf[end] == '\n' && len(t.accumulator) > 0 &&
			t.accumulator[len(t.accumulator)-1] == '\r' {
			// The '\r' of a '\r\n' pair ended the previous buffer.
			t.accumulator = t.accumulator[:len(t.accumulator)-1]
		}
		t.token = t.accumulator
	}

	t.advance(end + 1)
	return true
}

// skipToken discards the token that ends at the delimiter index end.
// Control flow mirrors prepareTokenOrAccumulate, but nothing is copied
// and any pending accumulation is dropped.
func (t *tokenizer) skipToken(end int) bool {
	t.accumulating = false

	if end < 0 {
		if !t.eofReached {
			return false
		}
		t.setTerminator(termEOF)
		return true
	}

	t.setTerminatorAndCountLine(int(t.buf[end]))
	t.advance(end + 1)
	return true
}

// parseUint consumes decimal digits from the buffer, accumulating them
// into *number and counting them in *numberLen.  Both must be reset by
// the caller before the first call; the method may be called repeatedly
// across buffer seams until it returns something other than endOfBuffer.
func (t *tokenizer) parseUint(number *uint32, numberLen *int) intParseResult {
	if len(t.buf) == 0 {
		if t.eofReached {
			t.setTerminator(termEOF)
			return endOfNumber
		}
		return endOfBuffer
	}

	for {
		digit := uint32(t.buf[0]) - '0'
		if digit > 9 {
			t.setTerminatorAndCountLine(int(t.buf[0]))
			t.advance(1)
			return endOfNumber
		}

		if *number > math.MaxUint32/10 ||
			(*number == math.MaxUint32/10 && digit > math.MaxUint32%10) {
			return integerOverflow
		}

		*number = *number*10 + digit
		*numberLen++

		t.advance(1)
		if len(t.buf) == 0 {
			return endOfBuffer
		}
	}
}

// tokenAsUint parses the whole current token as an unsigned integer.
func (t *tokenizer) tokenAsUint(number *uint32) bool {
	if len(t.token) == 0 {
		return false
	}
	*number = 0
	for _, c := range t.token {
		digit := uint32(c) - '0'
		if digit > 9 {
			return false
		}
		if *number > math.MaxUint32/10 ||
			(*number == math.MaxUint32/10 && digit > math.MaxUint32%10) {
			return false
		}
		*number = *number*10 + digit
	}
	return true
}

// keyValue splits the current token at the first occurrence of delim.
func (t *tokenizer) keyValue(delim byte) (key, value []byte, ok bool) {
	i := bytes.IndexByte(t.token, delim)
	if i < 0 {
		return nil, nil, false
	}
	return t.token[:i], t.token[i+1:], true
}

// tokenIsDot reports whether the current token denotes a missing value.
func (t *tokenizer) tokenIsDot() bool {
	return len(t.token) == 0 || (len(t.token) == 1 && t.token[0] == '.')
}

// atEOL reports whether the last token was the last one on its line.
func (t *tokenizer) atEOL() bool {
	return t.term == '\n' || t.term == termEOF
}
