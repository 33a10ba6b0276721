package translator

import (
	"strings"
	"unicode/utf8"

	"babel/internal/language"
)

// fragmenter groups raw token pieces into display fragments. Text is released
// up to the last whitespace so words are never split, newlines release
// everything, and a trailing CJK rune releases immediately since those scripts
// do not separate words with spaces.
type fragmenter struct {
	buf strings.Builder
}

// push adds a piece and returns the fragment ready for display, or "".
func (f *fragmenter) push(piece string) string {
	if piece == "" {
		return ""
	}
	f.buf.WriteString(piece)
	text := f.buf.String()

	if strings.HasSuffix(text, "\n") {
		f.buf.Reset()
		return text
	}
	if r, _ := utf8.DecodeLastRuneInString(text); language.IsCJK(r) {
		f.buf.Reset()
		return text
	}
	idx := strings.LastIndexAny(text, " \t\n")
	if idx < 0 {
		return ""
	}
	out, rest := text[:idx+1], text[idx+1:]
	f.buf.Reset()
	f.buf.WriteString(rest)
	return out
}

// flush returns whatever is still buffered.
func (f *fragmenter) flush() string {
	text := f.buf.String()
	f.buf.Reset()
	return text
}
