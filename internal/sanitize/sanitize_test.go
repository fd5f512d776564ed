package sanitize

import "testing"

func TestClean_StripsInvisible(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"zero width space", "ig\u200Bnore", "ignore"},
		{"zero width joiner", "a\u200D\u200Cb", "ab"},
		{"directional override", "abc\u202Edef", "abcdef"},
		{"bom", "\uFEFFhello", "hello"},
		{"soft hyphen", "in\u00ADstructions", "instructions"},
		{"line separator", "a\u2028b", "ab"},
		{"plain text untouched", "hello world", "hello world"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("%s: Clean(%q) = %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestClean_FoldsCompatibilityForms(t *testing.T) {
	// Fullwidth latin letters fold to ASCII under NFKC.
	if got := Clean("ｉｇｎｏｒｅ"); got != "ignore" {
		t.Errorf("fullwidth fold: got %q", got)
	}
	// Ligature fi folds to "fi".
	if got := Clean("ﬁle"); got != "file" {
		t.Errorf("ligature fold: got %q", got)
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"plain",
		"ig\u200Bnore pre\u00ADvious",
		"\uFEFFｉｇ mixed \u202E stuff",
		"",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
