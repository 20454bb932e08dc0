package names

import "testing"

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "spaces between words", in: "Board Minutes 2024", want: "BoardMinutes2024"},
		{name: "already clean", in: "Docs", want: "Docs"},
		{name: "lowercase single word", in: "docs", want: "Docs"},
		{name: "hyphenated", in: "board-minutes", want: "BoardMinutes"},
		{name: "underscores", in: "hr_policies_v2", want: "HrPoliciesV2"},
		{name: "interior camel case preserved", in: "boardMinutes", want: "BoardMinutes"},
		{name: "leading digit", in: "2024 review", want: "C2024Review"},
		{name: "digits only", in: "12345", want: "C12345"},
		{name: "punctuation soup", in: "a.b/c(d)", want: "ABCD"},
		{name: "non-ascii separates", in: "café menu", want: "CafMenu"},
		{name: "empty", in: "", want: "Collection"},
		{name: "only symbols", in: "!!!", want: "Collection"},
		{name: "leading and trailing space", in: "  quarterly report  ", want: "QuarterlyReport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{"Board Minutes 2024", "weird !@# name", "2 fast 2 query", ""}
	for _, in := range inputs {
		first := Sanitize(in)
		for range 5 {
			if got := Sanitize(in); got != first {
				t.Fatalf("Sanitize(%q) not stable: got %q then %q", in, first, got)
			}
		}
	}
}

func Test_Registry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	storage := r.Register("Board Minutes 2024")
	if storage != "BoardMinutes2024" {
		t.Fatalf("Register returned %q, want %q", storage, "BoardMinutes2024")
	}

	if got := r.Lookup(storage); got != "Board Minutes 2024" {
		t.Errorf("Lookup(%q) = %q, want original caller name", storage, got)
	}

	// Unknown storage names come back unchanged.
	if got := r.Lookup("CreatedElsewhere"); got != "CreatedElsewhere" {
		t.Errorf("Lookup of unregistered name = %q, want passthrough", got)
	}

	// Re-registering is stable.
	if again := r.Register("Board Minutes 2024"); again != storage {
		t.Errorf("second Register returned %q, want %q", again, storage)
	}
}
