package textspan

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases latin",
			input: "Patience IS Half",
			want:  "patience is half",
		},
		{
			name:  "strips arabic diacritics",
			input: "الصَّبْرُ",
			want:  "الصبر",
		},
		{
			name:  "collapses alef variants",
			input: "أإآ",
			want:  "ااا",
		},
		{
			name:  "collapses alef maqsura and taa marbuta",
			input: "هدى صلاة",
			want:  "هدي صلاه",
		},
		{
			name:  "removes tatweel",
			input: "الصـــبر",
			want:  "الصبر",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Fatalf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFoldEquatesSpellingVariants(t *testing.T) {
	if Fold("الإيمان") != Fold("الايمان") {
		t.Fatalf("hamza variant should fold equal: %q vs %q", Fold("الإيمان"), Fold("الايمان"))
	}
	if Fold("الصَّبْر") != Fold("الصبر") {
		t.Fatalf("diacritized form should fold equal")
	}
}

func TestTokens(t *testing.T) {
	got := Tokens(Fold("الصبر، نصف الإيمان! (really)"), 3)
	want := []string{"الصبر", "نصف", "الايمان", "really"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokensMinLen(t *testing.T) {
	got := Tokens("go is a fun language", 3)
	want := []string{"fun", "language"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenSetDedupes(t *testing.T) {
	set := TokenSet("word other word word", 3)
	if len(set) != 2 {
		t.Fatalf("got %d distinct tokens, want 2", len(set))
	}
	if _, ok := set["word"]; !ok {
		t.Fatalf("missing token %q", "word")
	}
}
