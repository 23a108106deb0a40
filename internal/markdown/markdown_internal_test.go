package markdown

import (
	"testing"
	"unicode/utf16"
)

func TestEscapeV2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"Paris is the capital.", `Paris is the capital\.`},
		{"a_b*c[d](e)", `a\_b\*c\[d\]\(e\)`},
		{`back\slash`, `back\\slash`},
		{"1 - 2 = -1!", `1 \- 2 \= \-1\!`},
	}

	for _, tt := range tests {
		if got := EscapeV2(tt.input); got != tt.want {
			t.Fatalf("EscapeV2(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEscapedLenMatchesEscapedUTF16Length(t *testing.T) {
	for _, input := range []string{"", "plain", "a.b-c", "Привет, мир!", "emoji 🚀 (rocket)"} {
		want := len(utf16.Encode([]rune(EscapeV2(input))))

		if got := EscapedLen(input); got != want {
			t.Fatalf("EscapedLen(%q) = %d, want %d", input, got, want)
		}
	}
}
