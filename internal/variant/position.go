package variant

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var alleleRe = regexp.MustCompile(`^[ACGT]+$`)

// Position is a resolved genomic coordinate with its reference and alternate
// alleles. The zero value is not valid; use NewPosition.
type Position struct {
	chrom string
	pos   int64
	ref   string
	alt   string
}

// NewPosition validates and normalizes the given fields into a Position
func NewPosition(chrom string, pos int64, ref, alt string) (Position, error) {
	c, err := NormalizeChromosome(chrom)
	if err != nil {
		return Position{}, err
	}
	if pos < 1 {
		return Position{}, fmt.Errorf("position must be >= 1, got %d", pos)
	}
	ref = strings.ToUpper(strings.TrimSpace(ref))
	alt = strings.ToUpper(strings.TrimSpace(alt))
	if !alleleRe.MatchString(ref) {
		return Position{}, fmt.Errorf("invalid reference allele %q", ref)
	}
	if !alleleRe.MatchString(alt) {
		return Position{}, fmt.Errorf("invalid alternate allele %q", alt)
	}
	return Position{chrom: c, pos: pos, ref: ref, alt: alt}, nil
}

// Chromosome returns the normalized chromosome token (e.g. "chr1")
func (p Position) Chromosome() string { return p.chrom }

// Pos returns the 1-based position
func (p Position) Pos() int64 { return p.pos }

// Ref returns the reference allele
func (p Position) Ref() string { return p.ref }

// Alt returns the alternate allele
func (p Position) Alt() string { return p.alt }

// End returns the last reference base covered by the variant
func (p Position) End() int64 { return p.pos + int64(len(p.ref)) - 1 }

// Canonical returns the HGVS-style genomic form, e.g. "chr1:g.12345A>G"
func (p Position) Canonical() string {
	return p.chrom + ":g." + strconv.FormatInt(p.pos, 10) + p.ref + ">" + p.alt
}

func (p Position) String() string { return p.Canonical() }

// MarshalJSON renders the position as an object with its canonical form
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Chromosome string `json:"chromosome"`
		Position   int64  `json:"position"`
		Ref        string `json:"ref"`
		Alt        string `json:"alt"`
		Canonical  string `json:"canonical"`
	}{p.chrom, p.pos, p.ref, p.alt, p.Canonical()})
}

// NormalizeChromosome maps chromosome tokens such as "1", "CHR1", "chrx" or
// "MT" onto the "chrN" form. Unknown contig names are kept, prefixed.
func NormalizeChromosome(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.EqualFold(s[:3], "chr") {
		s = s[3:]
	}
	if s == "" {
		return "", fmt.Errorf("empty chromosome")
	}

	switch strings.ToUpper(s) {
	case "X", "Y", "M":
		return "chr" + strings.ToUpper(s), nil
	case "MT":
		return "chrM", nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return "", fmt.Errorf("invalid chromosome %q", s)
		}
		return "chr" + strconv.Itoa(n), nil
	}

	return "chr" + s, nil
}

// Bare returns the chromosome without its "chr" prefix, the form Ensembl expects
func (p Position) Bare() string {
	b := strings.TrimPrefix(p.chrom, "chr")
	if b == "M" {
		return "MT"
	}
	return b
}
