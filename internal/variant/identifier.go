// Package variant classifies raw variant identifiers and resolves genomic
// positions without touching the network.
package variant

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnrecognized is matched by every ParseError
var ErrUnrecognized = errors.New("unrecognized identifier")

// Kind is the tag of an Identifier
type Kind int

const (
	KindRsID Kind = iota + 1
	KindTranscript
	KindHGVS
	KindPosition
)

func (k Kind) String() string {
	switch k {
	case KindRsID:
		return "rsid"
	case KindTranscript:
		return "transcript"
	case KindHGVS:
		return "hgvs"
	case KindPosition:
		return "position"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Identifier is a classified variant identifier. Position is set for
// KindPosition and for HGVS input that embeds both alleles.
type Identifier struct {
	Kind     Kind
	Raw      string
	Position *Position
}

// ParseError reports input that matched none of the identifier patterns
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unrecognized identifier %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("unrecognized identifier %q", e.Input)
}

// Is makes errors.Is(err, ErrUnrecognized) hold for every ParseError
func (e *ParseError) Is(target error) bool { return target == ErrUnrecognized }

var (
	rsIDRe       = regexp.MustCompile(`(?i)^rs\d+$`)
	transcriptRe = regexp.MustCompile(`^[A-Z]{2}_\d+(\.\d+)?:c\..+$`)
	chromPosRe   = regexp.MustCompile(`^chr(\w+):(\d+)(?::([ACGT]+)>([ACGT]+))?$`)
	genomicRe    = regexp.MustCompile(`^chr(\w+):g\.(\d+)([ACGT]+)>([ACGT]+)$`)
)

// Parse classifies raw into an Identifier. Rules are tried in order: rsID,
// transcript notation, chromosome-position/HGVS genomic notation.
func Parse(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)

	if rsIDRe.MatchString(s) {
		return Identifier{Kind: KindRsID, Raw: strings.ToLower(s)}, nil
	}

	if transcriptRe.MatchString(s) {
		return Identifier{Kind: KindTranscript, Raw: s}, nil
	}

	m := chromPosRe.FindStringSubmatch(s)
	if m == nil {
		m = genomicRe.FindStringSubmatch(s)
	}
	if m == nil {
		return Identifier{}, &ParseError{Input: raw}
	}

	id := Identifier{Kind: KindHGVS, Raw: s}
	pos, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || pos < 1 {
		return Identifier{}, &ParseError{Input: raw, Reason: "position out of range"}
	}
	if m[3] != "" && m[4] != "" {
		p, err := NewPosition(m[1], pos, m[3], m[4])
		if err != nil {
			return Identifier{}, &ParseError{Input: raw, Reason: err.Error()}
		}
		id.Position = &p
	}
	return id, nil
}

// FromPosition wraps explicit coordinates as a KindPosition identifier
func FromPosition(chrom string, pos int64, ref, alt string) (Identifier, error) {
	p, err := NewPosition(chrom, pos, ref, alt)
	if err != nil {
		return Identifier{}, fmt.Errorf("build position: %w", err)
	}
	return Identifier{Kind: KindPosition, Raw: p.Canonical(), Position: &p}, nil
}

// Resolved reports whether a genomic position is known for the identifier
func (id Identifier) Resolved() bool { return id.Position != nil }

// Key is a stable lookup key: the canonical position when resolved, the
// normalized raw text otherwise.
func (id Identifier) Key() string {
	if id.Position != nil {
		return id.Position.Canonical()
	}
	return id.Raw
}

func (id Identifier) String() string { return id.Raw }

// MarshalJSON renders the identifier with its kind tag
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     Kind      `json:"kind"`
		Raw      string    `json:"raw"`
		Position *Position `json:"position,omitempty"`
	}{id.Kind, id.Raw, id.Position})
}
