package types

import (
	"testing"
	"time"
)

func TestNormalizeSectionType(t *testing.T) {
	cases := []struct {
		in   string
		want SectionType
	}{
		{"introduccion", SectionIntroduction},
		{"introduction", SectionIntroduction},
		{"  CONCEPTO ", SectionConcept},
		{"ejemplo", SectionExample},
		{"ejercicio", SectionExercise},
		{"aplicacion", SectionApplication},
		{"conclusion", SectionConclusion},
		{"referencia", SectionReference},
		{"algo inventado", SectionConcept},
		{"", SectionConcept},
	}
	for _, tc := range cases {
		if got := NormalizeSectionType(tc.in); got != tc.want {
			t.Fatalf("NormalizeSectionType(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestDecodeOutline(t *testing.T) {
	t.Run("unset column yields empty version-1 outline", func(t *testing.T) {
		topic := &Topic{}
		o, err := topic.DecodeOutline()
		if err != nil {
			t.Fatalf("DecodeOutline: %v", err)
		}
		if o.Version != 1 {
			t.Fatalf("version %d, want 1", o.Version)
		}
		if o.Sections == nil || len(o.Sections) != 0 {
			t.Fatalf("sections %v, want empty non-nil slice", o.Sections)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		topic := &Topic{}
		in := TopicOutline{
			Sections:    []Section{{Title: "A", SectionType: SectionConcept, OrderIndex: 1, Depth: 1}},
			Version:     3,
			LastUpdated: time.Now().UTC(),
		}
		if err := topic.EncodeOutline(in); err != nil {
			t.Fatalf("EncodeOutline: %v", err)
		}
		out, err := topic.DecodeOutline()
		if err != nil {
			t.Fatalf("DecodeOutline: %v", err)
		}
		if out.Version != 3 || len(out.Sections) != 1 || out.Sections[0].Title != "A" {
			t.Fatalf("round trip mismatch: %+v", out)
		}
	})

	t.Run("corrupt json errors", func(t *testing.T) {
		topic := &Topic{Outline: []byte("{{")}
		if _, err := topic.DecodeOutline(); err == nil {
			t.Fatal("expected error for corrupt outline")
		}
	})
}
