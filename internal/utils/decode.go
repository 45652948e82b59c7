package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReplacementCharacter substitutes every byte that is not part of a valid UTF-8 sequence.
const ReplacementCharacter = "\uFFFD"

// lineEndingReplacer maps CRLF and lone CR to LF. CRLF is listed first so it
// matches as one unit.
var lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// DecodeText converts raw file bytes to text. Invalid UTF-8 is replaced with
// ReplacementCharacter, so decoding never fails, and line endings are
// normalized to "\n".
func DecodeText(data []byte) string {
	return NormalizeLineEndings(decodeUTF8(data))
}

// NormalizeLineEndings rewrites "\r\n" and lone "\r" as "\n".
func NormalizeLineEndings(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	return lineEndingReplacer.Replace(text)
}

func decodeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, _, decodeError := transform.Bytes(unicode.UTF8.NewDecoder(), data)
	if decodeError != nil {
		return strings.ToValidUTF8(string(data), ReplacementCharacter)
	}
	return string(decoded)
}
