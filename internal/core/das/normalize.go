package das

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Line is one logical line of cleaned document text.
type Line struct {
	Index int
	Page  int
	Text  string
	// Folded is Text without accents and lowercased, rune for rune, so rune
	// offsets in Folded are valid in Text.
	Folded string
	// Numerals carry byte offsets into Folded.
	Numerals []Numeral
}

// Currencies returns the currency tokens of the line.
func (l Line) Currencies() []Numeral {
	var out []Numeral
	for _, n := range l.Numerals {
		if n.Kind == NumeralCurrency {
			out = append(out, n)
		}
	}
	return out
}

// Percents returns the percentage tokens of the line.
func (l Line) Percents() []Numeral {
	var out []Numeral
	for _, n := range l.Numerals {
		if n.Kind == NumeralPercent {
			out = append(out, n)
		}
	}
	return out
}

const pageBreak = '\f'

var (
	whitespaceRegex = regexp.MustCompile(`[ \t\v\x{00a0}\x{2007}\x{202f}]+`)
	pageNumberRegex = regexp.MustCompile(`^(?:pagina|pag\.?)\s*\d+\s*(?:de|/)\s*\d+$`)
	digitRegex      = regexp.MustCompile(`\d`)
	hyphenWrapRegex = regexp.MustCompile(`\p{L}-$`)
)

// Normalize cleans raw extracted PDF text into ordered logical lines.
// It never fails: malformed numerals stay as plain text.
func Normalize(raw string) []Line {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	pages := splitPages(raw)
	pages = dropRepeatedBoilerplate(pages)

	var lines []Line
	for pageNr, page := range pages {
		for _, text := range page {
			folded := foldText(text)
			lines = append(lines, Line{
				Index:    len(lines),
				Page:     pageNr + 1,
				Text:     text,
				Folded:   folded,
				Numerals: scanNumerals(folded),
			})
		}
	}
	return lines
}

// splitPages collapses whitespace, joins hyphen-wrapped lines and groups lines
// into pages. Form feeds mark page breaks; without them a "Página N de M"
// line closes the current page.
func splitPages(raw string) [][]string {
	hasFormFeed := strings.ContainsRune(raw, pageBreak)

	var (
		pages   [][]string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			pages = append(pages, current)
		}
		current = nil
	}

	for _, chunk := range strings.Split(raw, string(pageBreak)) {
		for _, rawLine := range strings.Split(chunk, "\n") {
			text := strings.TrimSpace(whitespaceRegex.ReplaceAllString(rawLine, " "))
			if text == "" {
				continue
			}
			if n := len(current); n > 0 && hyphenWrapRegex.MatchString(current[n-1]) {
				current[n-1] = strings.TrimSuffix(current[n-1], "-") + text
				continue
			}
			current = append(current, text)
			if !hasFormFeed && pageNumberRegex.MatchString(foldText(text)) {
				flush()
			}
		}
		if hasFormFeed {
			flush()
		}
	}
	flush()
	return pages
}

// dropRepeatedBoilerplate keeps the first occurrence of a line that shows up on
// two or more pages and removes the repetitions on later pages.
func dropRepeatedBoilerplate(pages [][]string) [][]string {
	if len(pages) < 2 {
		return pages
	}

	pagesBySignature := make(map[string]map[int]bool)
	for i, page := range pages {
		for _, text := range page {
			sig := lineSignature(text)
			if pagesBySignature[sig] == nil {
				pagesBySignature[sig] = make(map[int]bool)
			}
			pagesBySignature[sig][i] = true
		}
	}

	seen := make(map[string]bool)
	out := make([][]string, len(pages))
	for i, page := range pages {
		for _, text := range page {
			sig := lineSignature(text)
			if len(pagesBySignature[sig]) >= 2 {
				if seen[sig] {
					continue
				}
				seen[sig] = true
			}
			out[i] = append(out[i], text)
		}
	}
	return out
}

// lineSignature masks the digits of page markers, so "Página 1 de 3" and
// "Página 2 de 3" collide. Every other line must repeat identically.
func lineSignature(text string) string {
	folded := foldText(text)
	if pageNumberRegex.MatchString(folded) {
		return digitRegex.ReplaceAllString(folded, "#")
	}
	return text
}

// foldText strips diacritics and lowercases one rune at a time, so "Apuração"
// and "APURACAO" compare equal and the rune count of the text is preserved.
func foldText(s string) string {
	// Transformers are stateful; each call builds its own chain.
	stripMarks := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		base, _, err := transform.String(stripMarks, string(r))
		if err != nil || utf8.RuneCountInString(base) != 1 {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		br, _ := utf8.DecodeRuneInString(base)
		b.WriteRune(unicode.ToLower(br))
	}
	return b.String()
}

// textAfter returns the original text that follows a byte offset of Folded.
func (l Line) textAfter(foldedOffset int) string {
	n := utf8.RuneCountInString(l.Folded[:foldedOffset])
	runes := []rune(l.Text)
	if n > len(runes) {
		return ""
	}
	return string(runes[n:])
}

// textBefore returns the original text that precedes a byte offset of Folded.
func (l Line) textBefore(foldedOffset int) string {
	n := utf8.RuneCountInString(l.Folded[:foldedOffset])
	runes := []rune(l.Text)
	if n > len(runes) {
		return l.Text
	}
	return string(runes[:n])
}
