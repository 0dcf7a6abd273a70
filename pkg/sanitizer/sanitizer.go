package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reControlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	reMultiSpace   = regexp.MustCompile(`[ \t]+`)
	reMultiNewline = regexp.MustCompile(`\n{3,}`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func stripControlChars(s string) string {
	return reControlChars.ReplaceAllString(s, "")
}

func collapseSpaces(s string) string {
	return reMultiSpace.ReplaceAllString(s, " ")
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return reMultiNewline.ReplaceAllString(s, "\n\n")
}

// SanitizeFreeText cleans multi-line user prose (questions, responses,
// notes): control characters dropped, whitespace runs collapsed, paragraph
// breaks preserved.
func SanitizeFreeText(input string) string {
	p := Pipeline{
		stripControlChars,
		collapseNewlines,
		collapseSpaces,
		trim,
	}
	return p.Apply(input)
}

// SanitizeReason cleans a single-line field such as a cancellation reason.
func SanitizeReason(input string) string {
	p := Pipeline{
		stripControlChars,
		func(s string) string { return strings.ReplaceAll(s, "\n", " ") },
		collapseSpaces,
		trim,
	}
	return p.Apply(input)
}
