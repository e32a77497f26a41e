package generate

import (
	"unicode/utf8"

	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// GenerateString produces a string parameter: empty by default, a UTF-8
// token from the target's auto-dictionary, or the text of a terminal node
// of a random document.
func GenerateString(s *State, in *lspinput.Input) (string, error) {
	switch s.Rand.IntN(3) {
	case 0:
		return "", nil
	case 1:
		if token, ok := chooseUTF8Token(s); ok {
			return token, nil
		}
		return "", nil
	default:
		if text, ok := chooseTerminalText(s, in); ok {
			return text, nil
		}
		return "", nil
	}
}

func chooseUTF8Token(s *State) (string, bool) {
	valid := make([]string, 0, len(s.Tokens))
	for _, token := range s.Tokens {
		if utf8.Valid(token) {
			valid = append(valid, string(token))
		}
	}
	return Choose(s, valid)
}

func chooseTerminalText(s *State, in *lspinput.Input) (string, bool) {
	ref, err := ChooseDocument(s, in)
	if err != nil {
		return "", false
	}
	var texts []string
	for _, r := range ref.Document.TerminalRanges() {
		text := ref.Document.Text(r)
		if len(text) > 0 && utf8.Valid(text) {
			texts = append(texts, string(text))
		}
	}
	return Choose(s, texts)
}
