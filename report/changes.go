package report

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MaxChangesChars caps the combined input size Changes will diff.
const MaxChangesChars = 20000

// Changes summarizes the word-level edits between the submitted and
// rewritten text as inline [-removed-]{+added+} markup. It returns "" when there is nothing to
// show or the texts are too large to diff usefully.
func Changes(original, rewritten string) string {
	if strings.TrimSpace(rewritten) == "" || original == rewritten {
		return ""
	}
	if utf8.RuneCountInString(original)+utf8.RuneCountInString(rewritten) > MaxChangesChars {
		return ""
	}

	diffs := wordDiff(original, rewritten)

	var b strings.Builder
	added, removed := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += utf8.RuneCountInString(d.Text)
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			added += utf8.RuneCountInString(d.Text)
			b.WriteString("{+" + d.Text + "+}")
		}
	}
	if added == 0 && removed == 0 {
		return ""
	}
	return fmt.Sprintf("CHANGES (+%d/-%d characters)\n%s", added, removed, b.String())
}

// wordDiff diffs a and b token by token. Each distinct token is encoded as one
// private-use rune so the character differ never splits a word, then the
// diff text is decoded back.
func wordDiff(a, b string) []diffmatchpatch.Diff {
	var vocab []string
	index := make(map[string]rune)
	encode := func(s string) []rune {
		tokens := tokenize(s)
		out := make([]rune, 0, len(tokens))
		for _, tok := range tokens {
			r, ok := index[tok]
			if !ok {
				r = tokenRune(len(vocab))
				index[tok] = r
				vocab = append(vocab, tok)
			}
			out = append(out, r)
		}
		return out
	}
	ra, rb := encode(a), encode(b)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMainRunes(ra, rb, false))
	for i, d := range diffs {
		var text strings.Builder
		for _, r := range d.Text {
			text.WriteString(vocab[runeToken(r)])
		}
		diffs[i].Text = text.String()
	}
	return diffs
}

// Token runes live in the BMP private use area, then plane 15, which holds
// more tokens than MaxChangesChars allows.
const (
	bmpPrivateBase   = 0xE000
	bmpPrivateSize   = 0x1900
	planePrivateBase = 0xF0000
)

func tokenRune(i int) rune {
	if i < bmpPrivateSize {
		return rune(bmpPrivateBase + i)
	}
	return rune(planePrivateBase + i - bmpPrivateSize)
}

func runeToken(r rune) int {
	if r >= planePrivateBase {
		return int(r-planePrivateBase) + bmpPrivateSize
	}
	return int(r - bmpPrivateBase)
}

// tokenize splits s into words, whitespace runs and single punctuation marks.
// Concatenating the tokens yields s.
func tokenize(s string) []string {
	var tokens []string
	start, prev := 0, tokenNone
	for i, r := range s {
		class := classify(r)
		if i > start && (class != prev || class == tokenPunct) {
			tokens = append(tokens, s[start:i])
			start = i
		}
		prev = class
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

type tokenClass int

const (
	tokenNone tokenClass = iota
	tokenWord
	tokenSpace
	tokenPunct
)

func classify(r rune) tokenClass {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '\'', r == '_':
		return tokenWord
	case unicode.IsSpace(r):
		return tokenSpace
	default:
		return tokenPunct
	}
}
