package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("translation")

	if last := gen.Last(); last != "" {
		t.Fatalf("expected no id before Next, got %q", last)
	}
	first := gen.Next()
	second := gen.Next()
	if first != "translation-1" || second != "translation-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if last := gen.Last(); last != second {
		t.Fatalf("expected Last to report %q, got %q", second, last)
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	next := NewIDGenerator("").NextFunc()
	if got := next(); got != "id-1" {
		t.Fatalf("expected id-1, got %q", got)
	}

	var nilGen *IDGenerator
	if got := nilGen.NextFunc()(); got != "" {
		t.Fatalf("expected empty id from nil generator, got %q", got)
	}
}
