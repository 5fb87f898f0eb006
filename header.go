package vcf

// Header holds the metadata extracted from a VCF file header.  It is
// populated while the initial Feed calls walk the meta-information lines
// and the header line, and is read-only afterwards.
type Header struct {
	fileFormat          string
	metaInfo            map[string][]string
	metaKeys            []string
	genotypeInfoPresent bool
	sampleIDs           []string
}

// FileFormat returns the value of the ##fileformat line, e.g. "VCFv4.2".
func (h *Header) FileFormat() string { return h.fileFormat }

// MetaInfo returns the meta-information lines keyed by their name with
// the leading "##" removed.  A key that occurs on several lines (INFO,
// FORMAT, contig, ...) maps to its values in file order.  The returned
// map is shared with the Header and must not be modified.
func (h *Header) MetaInfo() map[string][]string { return h.metaInfo }

// MetaInfoKeys returns the meta-information keys in order of first
// appearance in the file.
func (h *Header) MetaInfoKeys() []string { return h.metaKeys }

// HasGenotypeInfo reports whether the header line declared a FORMAT
// column.
func (h *Header) HasGenotypeInfo() bool { return h.genotypeInfoPresent }

// SampleIDs returns the sample identifiers from the header line, in
// column order.  It is empty when the file has no genotype columns.
func (h *Header) SampleIDs() []string { return h.sampleIDs }

func (h *Header) addMetaInfo(key, value string) {
	if _, ok := h.metaInfo[key]; !ok {
		h.metaKeys = append(h.metaKeys, key)
	}
	h.metaInfo[key] = append(h.metaInfo[key], value)
}
