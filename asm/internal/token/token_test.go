package token

import (
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			"empty",
			"",
			nil,
		},
		{
			"parens",
			"()",
			[]Token{{"(", LParen, 1}, {")", RParen, 1}},
		},
		{
			"func header",
			"(func $sum",
			[]Token{{"(", LParen, 1}, {"func", Ident, 1}, {"$sum", Ident, 1}},
		},
		{
			"newlines",
			"(\nload_fast\nn)",
			[]Token{{"(", LParen, 1}, {"load_fast", Ident, 2}, {"n", Ident, 3}, {")", RParen, 3}},
		},
		{
			"numbers",
			"42 -7 0xFF 1_000",
			[]Token{{"42", Number, 1}, {"-7", Number, 1}, {"0xFF", Number, 1}, {"1_000", Number, 1}},
		},
		{
			"string with escape",
			`"a\"b"`,
			[]Token{{`a\"b`, String, 1}},
		},
		{
			"line comment",
			";; header\n(nop)",
			[]Token{{"(", LParen, 2}, {"nop", Ident, 2}, {")", RParen, 2}},
		},
		{
			"block comment",
			"(; a (; nested ;) b\n;) pop_top",
			[]Token{{"pop_top", Ident, 2}},
		},
		{
			"mark reference",
			"(jump_forward $done)",
			[]Token{{"(", LParen, 1}, {"jump_forward", Ident, 1}, {"$done", Ident, 1}, {")", RParen, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d tokens %v, want %d", len(got), got, len(tt.expected))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token %d = %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestType_String(t *testing.T) {
	if LParen.String() != "'('" || Number.String() != "number" || Type(99).String() != "unknown" {
		t.Error("unexpected type names")
	}
}
