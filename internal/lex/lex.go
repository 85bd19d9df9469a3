// Package lex splits raw corpus text into typed slices and segments
// prose into words. Math expressions are recognized by their tag markup
// ($...$, $$...$$ and [imath]...[/imath]); everything between math tags
// is emitted as plain text for later word segmentation.
//
// Scan emits only Math and PlainText slices. Word segmentation runs
// inside the indexing session, so prose runs are never pre-tokenized
// here. SliceEnglishText carries a single already-segmented token and
// exists for callers that bypass Scan with their own tokenizer.
package lex

import (
	"regexp"
	"strings"
	"unicode"
)

// SliceType tags a lexer-produced span of document text.
type SliceType int

const (
	// SliceMath is an embedded math expression, tag markup included.
	SliceMath SliceType = iota
	// SlicePlainText is prose that still needs word segmentation.
	SlicePlainText
	// SliceEnglishText is a single pre-segmented normalizable unit.
	SliceEnglishText
)

// String returns the slice type name for logs.
func (t SliceType) String() string {
	switch t {
	case SliceMath:
		return "math"
	case SlicePlainText:
		return "plain_text"
	case SliceEnglishText:
		return "english_text"
	default:
		return "unknown"
	}
}

// Slice is a typed span of raw document text. Offset and NBytes
// describe the span in the original document.
type Slice struct {
	Type   SliceType
	Text   string
	Offset uint32
	NBytes uint32
}

// Word is one segmented token of a plain-text slice. Offset is relative
// to the slice start; the indexing session adjusts it to be
// document-relative.
type Word struct {
	Text   string
	Offset uint32
	NBytes uint32
}

// wordRegex matches one indexable word. Segmentation runs on text that
// was already lowercased, but upper-case is accepted for direct callers.
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Scan splits text into math and plain-text slices, in document order.
// Math slices keep their tag markup; byte offsets refer to the original
// text. Unterminated math markup is treated as prose.
func Scan(text string) ([]Slice, error) {
	var slices []Slice

	emitProse := func(start, end int) {
		seg := text[start:end]
		left := strings.TrimLeftFunc(seg, unicode.IsSpace)
		trimmed := strings.TrimRightFunc(left, unicode.IsSpace)
		if trimmed == "" {
			return
		}
		// narrow the span to the trimmed content so offset records
		// point at actual text
		start += len(seg) - len(left)
		slices = append(slices, Slice{
			Type:   SlicePlainText,
			Text:   trimmed,
			Offset: uint32(start),
			NBytes: uint32(len(trimmed)),
		})
	}

	i := 0
	for i < len(text) {
		open, openLen, closeTag := nextMathOpen(text, i)
		if open < 0 {
			emitProse(i, len(text))
			break
		}
		rel := strings.Index(text[open+openLen:], closeTag)
		if rel < 0 {
			// unterminated math tag, treat the rest as prose
			emitProse(i, len(text))
			break
		}
		end := open + openLen + rel + len(closeTag)

		emitProse(i, open)
		slices = append(slices, Slice{
			Type:   SliceMath,
			Text:   text[open:end],
			Offset: uint32(open),
			NBytes: uint32(end - open),
		})
		i = end
	}

	return slices, nil
}

// nextMathOpen finds the earliest math opening tag at or after i.
// Returns the absolute opener offset, opener length, and closing tag,
// or (-1, 0, "") when no math markup remains.
func nextMathOpen(text string, i int) (int, int, string) {
	dollar := strings.Index(text[i:], "$")
	bracket := strings.Index(text[i:], "[imath]")

	if dollar < 0 && bracket < 0 {
		return -1, 0, ""
	}
	if bracket >= 0 && (dollar < 0 || bracket < dollar) {
		return i + bracket, len("[imath]"), "[/imath]"
	}

	open := i + dollar
	if strings.HasPrefix(text[open:], "$$") {
		return open, 2, "$$"
	}
	return open, 1, "$"
}

// StripMathTag removes the math tag markup around a math slice,
// returning the bare TeX source.
func StripMathTag(s string) string {
	switch {
	case strings.HasPrefix(s, "[imath]") && strings.HasSuffix(s, "[/imath]"):
		s = s[len("[imath]") : len(s)-len("[/imath]")]
	case strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$") && len(s) >= 4:
		s = s[2 : len(s)-2]
	case strings.HasPrefix(s, "$") && strings.HasSuffix(s, "$") && len(s) >= 2:
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// SegmentWords splits slice text into words with byte offsets relative
// to the slice start.
func SegmentWords(text string) []Word {
	matches := wordRegex.FindAllStringIndex(text, -1)
	words := make([]Word, 0, len(matches))
	for _, m := range matches {
		words = append(words, Word{
			Text:   text[m[0]:m[1]],
			Offset: uint32(m[0]),
			NBytes: uint32(m[1] - m[0]),
		})
	}
	return words
}

// ToLowerASCII lowercases ASCII letters byte-wise, leaving everything
// else untouched. Unlike strings.ToLower it can never change byte
// lengths, which keeps slice offsets valid.
func ToLowerASCII(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if b == nil {
				b = []byte(s)
			}
			b[i] = c + ('a' - 'A')
		}
	}
	if b == nil {
		return s
	}
	return string(b)
}
