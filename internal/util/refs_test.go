package util

import "testing"

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "no markers",
			input: "plain text without citations",
			want:  nil,
		},
		{
			name:  "single marker",
			input: "as narrated in [[quran:2:153]] the verse says",
			want:  []string{"quran:2:153"},
		},
		{
			name:  "repeated marker deduped",
			input: "[[bukhari:52]] text [[bukhari:52]] more [[muslim:99]]",
			want:  []string{"bukhari:52", "muslim:99"},
		},
		{
			name:  "whitespace inside marker trimmed",
			input: "see [[ quran:3:200 ]]",
			want:  []string{"quran:3:200"},
		},
		{
			name:  "empty marker skipped",
			input: "broken [[ ]] marker",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCitations(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("citation[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
