package analysis

import "testing"

func TestRedactPII_MasksCommonPatternsAndAliasesNames(t *testing.T) {
	texts := []string{
		"Reach me at alice@example.com or +1 555 123 4567. Token: secret=abcdEFGH1234",
		"Alice Smith shared https://example.com/path with Bob",
	}
	red := RedactPII(texts, []string{"Alice Smith", "Bob", "Alice Smith"})

	if len(red) != 2 { t.Fatalf("expected 2 texts, got %d", len(red)) }
	if red[0] == texts[0] { t.Fatalf("expected first text scrubbed") }
	for _, bad := range []string{"alice@example.com", "555 123 4567", "abcdEFGH1234"} {
		if contains(red[0], bad) { t.Fatalf("%q not scrubbed: %s", bad, red[0]) }
	}
	want := "user01 shared <url> with user02"
	if red[1] != want { t.Fatalf("got %q want %q", red[1], want) }
}

func TestRedactPII_NoNames(t *testing.T) {
	red := RedactPII([]string{"plain text"}, nil)
	if red[0] != "plain text" { t.Fatalf("unexpected change: %q", red[0]) }
}

func TestRedactPII_KeepsISODates(t *testing.T) {
	red := RedactPII([]string{"Release slipped to 2025-01-15, call +1 555-123-4567 before 2025-01-20"}, nil)
	want := "Release slipped to 2025-01-15, call <phone> before 2025-01-20"
	if red[0] != want { t.Fatalf("got %q want %q", red[0], want) }
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub { return true }
	}
	return false
}
