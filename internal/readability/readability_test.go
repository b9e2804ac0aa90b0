package readability

import "testing"

func TestEaseEmptyInput(t *testing.T) {
	if _, ok := Ease(""); ok {
		t.Fatal("empty input should report ok=false")
	}
	if _, ok := Ease("   \n\t "); ok {
		t.Fatal("whitespace-only input should report ok=false")
	}
}

func TestEaseOrdersSimpleBeforeComplex(t *testing.T) {
	simple := "The cat sat on the mat. The dog ran to the park. We like short words."
	complex := "Notwithstanding considerable organizational heterogeneity, interdisciplinary collaboration necessitates comprehensive institutional accountability mechanisms."

	simpleScore, ok := Ease(simple)
	if !ok {
		t.Fatal("expected a score for simple prose")
	}
	complexScore, ok := Ease(complex)
	if !ok {
		t.Fatal("expected a score for complex prose")
	}

	if simpleScore <= complexScore {
		t.Fatalf("simple prose should score higher: simple=%.1f complex=%.1f", simpleScore, complexScore)
	}
}

func TestEaseDeterministic(t *testing.T) {
	text := "Plumbing repairs should be quick. Call us today for a free quote."
	a, _ := Ease(text)
	b, _ := Ease(text)
	if a != b {
		t.Fatalf("same input produced different scores: %v vs %v", a, b)
	}
}

func TestCountSyllables(t *testing.T) {
	cases := map[string]int{
		"cat":      1,
		"water":    2,
		"syllable": 2,
		"a":        1,
		"rhythm":   1,
	}
	for word, want := range cases {
		if got := countSyllables(word); got != want {
			t.Errorf("countSyllables(%q) = %d, want %d", word, got, want)
		}
	}
}
