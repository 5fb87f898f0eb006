// Package vcf implements a pull-mode, push-fed, resumable parser for VCF
// (Variant Call Format) files.  See
// https://samtools.github.io/hts-specs/VCFv4.2.pdf.
//
// The parser performs no I/O of its own.  The caller reads the input into
// buffers and pushes them in with (*Scanner).Feed; the parser hands back
// one logical field at a time through the Parse* methods.  Whenever a
// field straddles the end of the current buffer, the pending operation
// returns NeedMoreData and is resumed by the next Feed call, so a file
// can be streamed through fixed-size buffers (or fed from a memory map)
// without the parser ever blocking on a read.
//
// Parsed fields are not retained: each data-line field is written to the
// caller-supplied destination and forgotten as soon as the next field is
// requested.  INFO entries and decoded GT values are the exception: they
// live in parser-owned slices that the next ParseInfo or ParseGenotype
// call overwrites.  Only the header (meta-information and sample IDs)
// and the set of FORMAT key names are kept for the lifetime of the
// Scanner.
package vcf
