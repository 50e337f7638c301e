package plugin

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ImplementationSuffix is appended to derived implementation names
const ImplementationSuffix = "Agent"

// DeriveImplementationName converts a hyphenated agent identifier into the
// conventional implementation name: synth-notes-generator becomes
// SynthNotesGeneratorAgent. The suffix is not doubled.
func DeriveImplementationName(agentID string) string {
	var b strings.Builder
	for _, part := range strings.Split(agentID, "-") {
		b.WriteString(capitalize(part))
	}

	name := b.String()
	if !strings.HasSuffix(name, ImplementationSuffix) {
		name += ImplementationSuffix
	}
	return name
}

// capitalize upper-cases the first rune and lower-cases the rest
func capitalize(word string) string {
	if word == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
