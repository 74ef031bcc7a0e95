package graph

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the NFC form of a path component, so composed and
// decomposed spellings of the same name resolve to the same path.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidPathComponent reports whether name may be stored as a path component.
func ValidPathComponent(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\x00") && utf8.ValidString(name)
}

// rootNameForbidden holds the characters used by "@root/path" display syntax.
const rootNameForbidden = "@: /\t\n"

// ValidRootName reports whether name may be bound as a root.
func ValidRootName(name string) bool {
	if name == "" || !utf8.ValidString(name) {
		return false
	}
	return !strings.ContainsAny(name, rootNameForbidden)
}

// SummarizeCommand shortens cmd to at most width runes. When truncation is
// needed the tail is replaced with "...", and the result is exactly width
// runes long. Newlines and tabs become spaces.
func SummarizeCommand(cmd string, width int) (string, error) {
	if width < 4 {
		return "", Errorf(CodeOutOfRange, "summarize command", "width %d is below the minimum of 4", width)
	}
	flat := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, cmd)

	runes := []rune(flat)
	if len(runes) <= width {
		return flat, nil
	}
	return string(runes[:width-3]) + "...", nil
}
