package variant

import (
	"errors"
	"fmt"
	"testing"
)

func TestParse_RsID(t *testing.T) {
	for _, in := range []string{"rs238242", "RS7527068", "rs1", " rs142513484 "} {
		id, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", in, err)
		}
		if id.Kind != KindRsID {
			t.Errorf("Parse(%q): expected rsid, got %s", in, id.Kind)
		}
		if id.Resolved() {
			t.Errorf("Parse(%q): rsid should not carry a position", in)
		}
	}

	id, _ := Parse("RS123")
	if id.Raw != "rs123" {
		t.Errorf("expected lowercased raw, got %q", id.Raw)
	}
}

func TestParse_RsIDProperty(t *testing.T) {
	for i := 0; i < 500; i++ {
		in := fmt.Sprintf("rs%d", i*7919)
		id, err := Parse(in)
		if err != nil || id.Kind != KindRsID {
			t.Fatalf("Parse(%q) = %v, %v; want rsid", in, id.Kind, err)
		}
	}
}

func TestParse_Transcript(t *testing.T) {
	for _, in := range []string{"NM_000551.3:c.194C>G", "NM_007294:c.5266dupC", "NR_024540.1:c.100-2A>G"} {
		id, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", in, err)
		}
		if id.Kind != KindTranscript {
			t.Errorf("Parse(%q): expected transcript, got %s", in, id.Kind)
		}
		if id.Resolved() {
			t.Errorf("Parse(%q): transcript should not resolve a position locally", in)
		}
	}
}

func TestParse_HGVS(t *testing.T) {
	tests := []struct {
		in        string
		resolved  bool
		canonical string
	}{
		{"chr1:12345:A>G", true, "chr1:g.12345A>G"},
		{"chr2:g.67890C>T", true, "chr2:g.67890C>T"},
		{"chrX:54321", false, ""},
		{"chr17:g.41245466GA>G", true, "chr17:g.41245466GA>G"},
	}

	for _, tt := range tests {
		id, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tt.in, err)
		}
		if id.Kind != KindHGVS {
			t.Errorf("Parse(%q): expected hgvs, got %s", tt.in, id.Kind)
		}
		if id.Resolved() != tt.resolved {
			t.Errorf("Parse(%q): resolved = %v, want %v", tt.in, id.Resolved(), tt.resolved)
		}
		if tt.resolved && id.Position.Canonical() != tt.canonical {
			t.Errorf("Parse(%q): canonical = %q, want %q", tt.in, id.Position.Canonical(), tt.canonical)
		}
	}
}

func TestParse_Unrecognized(t *testing.T) {
	inputs := []string{
		"",
		"BRCA1",
		"rs",
		"rs12a",
		"1:12345:A>G",
		"chr1:g.12345",
		"nm_000551.3:c.194C>G",
		"chr1:0:A>G",
		"chr1:12345:A>N",
	}

	for _, in := range inputs {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q): expected error", in)
			continue
		}
		if !errors.Is(err, ErrUnrecognized) {
			t.Errorf("Parse(%q): expected ErrUnrecognized, got %v", in, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Input != in {
			t.Errorf("Parse(%q): expected ParseError carrying input, got %v", in, err)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	inputs := []string{"rs238242", "chr1:12345:A>G", "NM_000551.3:c.194C>G", "garbage"}
	for _, in := range inputs {
		first, firstErr := Parse(in)
		for i := 0; i < 10; i++ {
			again, err := Parse(in)
			if (err == nil) != (firstErr == nil) || again.Kind != first.Kind || again.Key() != first.Key() {
				t.Fatalf("Parse(%q) not deterministic", in)
			}
		}
	}
}

func TestFromPosition(t *testing.T) {
	id, err := FromPosition("1", 12345, "a", "g")
	if err != nil {
		t.Fatalf("FromPosition failed: %v", err)
	}
	if id.Kind != KindPosition {
		t.Errorf("expected position kind, got %s", id.Kind)
	}
	if id.Key() != "chr1:g.12345A>G" {
		t.Errorf("unexpected key %q", id.Key())
	}

	if _, err := FromPosition("chr1", 0, "A", "G"); err == nil {
		t.Error("expected error for position 0")
	}
	if _, err := FromPosition("chr1", 10, "", "G"); err == nil {
		t.Error("expected error for empty reference allele")
	}
}
