package transcript

import "testing"

func TestClassifyLanguage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"english text", "hello world this is a test", "en"},
		{"cyrillic text", "привіт світ", "uk"},
		{"mixed starts latin but cyrillic within window", "ok привіт", "uk"},
		{"cyrillic beyond inspection window", "this sentence has more than twenty letters before привіт", "en"},
		{"digits and punctuation ignored", "123, 456! ok", "en"},
		{"empty text", "", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLanguage(tt.text, "en", "uk")
			if got != tt.expected {
				t.Errorf("ClassifyLanguage(%q) = %s, expected %s", tt.text, got, tt.expected)
			}
		})
	}
}
