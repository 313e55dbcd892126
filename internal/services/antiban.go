package services

import (
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
)

// invisibleChars is the palette of zero-width/invisible codepoints used to
// give every outgoing message a unique byte signature without changing how it
// renders.
var invisibleChars = []rune{
	'​', '‌', '‍', '⁠',
	'⁡', '⁢', '⁣', '⁤', '⁮', '⁯',
}

var spintaxRegex = regexp.MustCompile(`\{([^{}]+)\}`)

// Spintax expands {a|b|c} groups, picking one alternative uniformly at random
// per occurrence. Text without groups passes through unchanged.
func Spintax(text string) string {
	return spintaxRegex.ReplaceAllStringFunc(text, func(match string) string {
		choices := strings.Split(match[1:len(match)-1], "|")
		return choices[rand.Intn(len(choices))]
	})
}

// RandomizeText applies the anti-ban pipeline to an outgoing message: spintax
// expansion first, then 1-3 invisible characters on each end so the content
// hash differs between sends of the same text. Empty input is returned as-is.
func RandomizeText(text string) string {
	if text == "" {
		return text
	}

	randomChar := func() rune {
		return invisibleChars[rand.Intn(len(invisibleChars))]
	}

	var prefix, suffix strings.Builder
	for i := 0; i < rand.Intn(3)+1; i++ {
		prefix.WriteRune(randomChar())
	}
	for i := 0; i < rand.Intn(3)+1; i++ {
		suffix.WriteRune(randomChar())
	}

	result := prefix.String() + Spintax(text) + suffix.String()

	log.Printf("[Anti-Ban] Enviando (Estructura Real): %s", debugView(result))

	return result
}

// StripInvisible removes every palette codepoint, recovering the visible text.
func StripInvisible(text string) string {
	return strings.Map(func(r rune) rune {
		for _, invisible := range invisibleChars {
			if r == invisible {
				return -1
			}
		}
		return r
	}, text)
}

// debugView renders the real structure of an outgoing message, showing
// invisible codepoints as [\uXXXX] escapes.
func debugView(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteString(fmt.Sprintf(`[\u%04X]`, r))
		}
	}
	return b.String()
}
