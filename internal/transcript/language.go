package transcript

import "unicode"

// classifyLetterCount is how many leading letters are inspected when
// guessing the language of a recognition result.
const classifyLetterCount = 20

// ClassifyLanguage guesses the language of recognized text by inspecting its
// first letters: if they are all ASCII the text is attributed to latinLang
// (the language that requires translation), otherwise to defaultLang. This is
// a cheap heuristic, not real language identification.
func ClassifyLanguage(text, latinLang, defaultLang string) string {
	seen := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}

		if r > unicode.MaxASCII {
			return defaultLang
		}

		seen++
		if seen >= classifyLetterCount {
			break
		}
	}

	return latinLang
}
