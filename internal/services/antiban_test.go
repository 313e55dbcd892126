package services

import (
	"strings"
	"testing"
)

func TestRandomizeTextPreservesVisibleContent(t *testing.T) {
	const text = "Hola! Bienvenido de nuevo."

	out := RandomizeText(text)
	if out == text {
		t.Fatal("randomized text should differ from the original bytes")
	}
	if StripInvisible(out) != text {
		t.Fatalf("stripping invisible characters should recover %q, got %q", text, StripInvisible(out))
	}

	// 1-3 invisible runes on each end.
	prefix := len([]rune(out)) - len([]rune(text))
	if prefix < 2 || prefix > 6 {
		t.Fatalf("expected 2-6 added runes, got %d", prefix)
	}
}

func TestRandomizeTextEmpty(t *testing.T) {
	if out := RandomizeText(""); out != "" {
		t.Fatalf("empty input must pass through unchanged, got %q", out)
	}
}

func TestRandomizeTextVariesBetweenCalls(t *testing.T) {
	const text = "mismo texto"

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[RandomizeText(text)] = true
	}
	if len(seen) < 2 {
		t.Fatal("twenty sends of the same text should not share one byte signature")
	}
}

func TestSpintax(t *testing.T) {
	out := Spintax("{Hola|Buenas}, ¿cómo estás?")
	if out != "Hola, ¿cómo estás?" && out != "Buenas, ¿cómo estás?" {
		t.Fatalf("unexpected expansion %q", out)
	}

	const plain = "sin grupos aquí"
	if Spintax(plain) != plain {
		t.Fatal("text without groups must pass through unchanged")
	}

	out = Spintax("{a|b} y {c|d}")
	parts := strings.Split(out, " y ")
	if len(parts) != 2 || (parts[0] != "a" && parts[0] != "b") || (parts[1] != "c" && parts[1] != "d") {
		t.Fatalf("each group should expand independently, got %q", out)
	}
}

func TestStripInvisibleOnCleanText(t *testing.T) {
	const text = "Texto normal, sin nada raro. 123"
	if StripInvisible(text) != text {
		t.Fatal("clean text must pass through unchanged")
	}
}
