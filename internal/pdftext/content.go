package pdftext

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokOperator
	tokArrayStart
	tokArrayEnd
	tokArray
	tokOther
)

type token struct {
	kind  tokenKind
	text  string
	num   float64
	str   []byte
	hex   bool
	elems []token
}

// lexer splits a page content stream into PDF tokens.
type lexer struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		break
	}
	if l.pos >= len(l.data) {
		return token{}, false
	}

	c := l.data[l.pos]
	switch {
	case c == '(':
		return token{kind: tokString, str: l.literal()}, true
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return token{kind: tokOther}, true
		}
		return token{kind: tokString, str: l.hexString(), hex: true}, true
	case c == '>':
		l.pos++
		if l.pos < len(l.data) && l.data[l.pos] == '>' {
			l.pos++
		}
		return token{kind: tokOther}, true
	case c == '[':
		l.pos++
		return token{kind: tokArrayStart}, true
	case c == ']':
		l.pos++
		return token{kind: tokArrayEnd}, true
	case c == '{' || c == '}' || c == ')':
		l.pos++
		return token{kind: tokOther}, true
	case c == '/':
		l.pos++
		return token{kind: tokName, text: l.regular()}, true
	}

	word := l.regular()
	if word == "" {
		l.pos++
		return token{kind: tokOther}, true
	}
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokNumber, num: n, text: word}, true
	}
	return token{kind: tokOperator, text: word}, true
}

func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal reads a (string) with nested parentheses and escapes.
func (l *lexer) literal() []byte {
	var out []byte
	depth := 0
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.data):
			l.pos++
			out = l.escape(out)
			continue
		case c == '(':
			depth++
			if depth > 1 {
				out = append(out, c)
			}
		case c == ')':
			depth--
			if depth == 0 {
				l.pos++
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
		l.pos++
	}
	return out
}

// escape decodes the sequence after a backslash and advances past it.
func (l *lexer) escape(out []byte) []byte {
	c := l.data[l.pos]
	l.pos++
	switch c {
	case 'n':
		return append(out, '\n')
	case 'r':
		return append(out, '\r')
	case 't':
		return append(out, '\t')
	case 'b':
		return append(out, '\b')
	case 'f':
		return append(out, '\f')
	case '\r':
		if l.pos < len(l.data) && l.data[l.pos] == '\n' {
			l.pos++
		}
		return out
	case '\n':
		return out
	}
	if c >= '0' && c <= '7' {
		v := int(c - '0')
		for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
			v = v*8 + int(l.data[l.pos]-'0')
			l.pos++
		}
		return append(out, byte(v))
	}
	return append(out, c)
}

func (l *lexer) hexString() []byte {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage jumps past the binary data of a BI ... ID ... EI block.
func (l *lexer) skipInlineImage() {
	idx := strings.Index(string(l.data[l.pos:]), "ID")
	if idx < 0 {
		l.pos = len(l.data)
		return
	}
	l.pos += idx + 2
	for l.pos+2 < len(l.data) {
		if isSpace(l.data[l.pos]) && l.data[l.pos+1] == 'E' && l.data[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.data) || isSpace(l.data[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

// textWriter rebuilds lines from text positioning and showing operators.
type textWriter struct {
	out         strings.Builder
	y           float64
	leading     float64
	printedY    float64
	havePrinted bool
	moved       bool
	breakLine   bool
}

// kerningGap is the TJ adjustment, in thousandths of an em, read as a space.
const kerningGap = -200

func (w *textWriter) apply(op string, operands []token) {
	switch op {
	case "BT":
		w.y = 0
	case "Td", "TD":
		if ty, ok := number(operands, 1, 2); ok {
			w.y += ty
			if op == "TD" {
				w.leading = -ty
			}
		}
		w.moved = true
	case "Tm":
		if f, ok := number(operands, 5, 6); ok {
			w.y = f
		}
		w.moved = true
	case "TL":
		if tl, ok := number(operands, 0, 1); ok {
			w.leading = tl
		}
	case "T*":
		w.nextLine()
	case "Tj":
		if s, ok := lastString(operands); ok {
			w.show(s)
		}
	case "'", "\"":
		w.nextLine()
		if s, ok := lastString(operands); ok {
			w.show(s)
		}
	case "TJ":
		if len(operands) > 0 && operands[len(operands)-1].kind == tokArray {
			w.showArray(operands[len(operands)-1].elems)
		}
	}
}

func (w *textWriter) nextLine() {
	w.y -= w.leading
	w.breakLine = true
}

func (w *textWriter) separate() {
	if w.havePrinted {
		switch {
		case w.breakLine || math.Abs(w.y-w.printedY) > 0.5:
			w.newline()
		case w.moved:
			w.space()
		}
	}
	w.printedY = w.y
	w.havePrinted = true
	w.moved = false
	w.breakLine = false
}

func (w *textWriter) show(s token) {
	w.separate()
	w.out.WriteString(decodeString(s))
}

func (w *textWriter) showArray(elems []token) {
	w.separate()
	for _, e := range elems {
		switch e.kind {
		case tokString:
			w.out.WriteString(decodeString(e))
		case tokNumber:
			if e.num < kerningGap {
				w.space()
			}
		}
	}
}

func (w *textWriter) newline() {
	s := w.out.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	w.out.WriteByte('\n')
}

func (w *textWriter) space() {
	s := w.out.String()
	if s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		return
	}
	w.out.WriteByte(' ')
}

func number(operands []token, idx, want int) (float64, bool) {
	if len(operands) < want {
		return 0, false
	}
	t := operands[len(operands)-want+idx]
	if t.kind != tokNumber {
		return 0, false
	}
	return t.num, true
}

func lastString(operands []token) (token, bool) {
	if len(operands) == 0 || operands[len(operands)-1].kind != tokString {
		return token{}, false
	}
	return operands[len(operands)-1], true
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// decodeString maps string bytes to text. UTF-16 is recognized by its byte
// order mark, or for hex strings by zero high bytes; anything else is read as
// WinAnsi (Windows-1252). Fonts with custom CID maps are not decoded.
func decodeString(t token) string {
	b := t.str
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		if s, err := utf16BE.NewDecoder().Bytes(b[2:]); err == nil {
			return string(s)
		}
	}
	if t.hex && looksUTF16(b) {
		if s, err := utf16BE.NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(s) {
		return ""
	}
	return string(s)
}

func looksUTF16(b []byte) bool {
	if len(b) < 2 || len(b)%2 != 0 {
		return false
	}
	for i := 0; i < len(b); i += 2 {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

// contentText extracts the text of one page content stream.
func contentText(data []byte) string {
	lx := &lexer{data: data}
	w := &textWriter{}

	var (
		operands []token
		arrays   [][]token
	)
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokArrayStart:
			arrays = append(arrays, nil)
			continue
		case tokArrayEnd:
			if len(arrays) == 0 {
				continue
			}
			tok = token{kind: tokArray, elems: arrays[len(arrays)-1]}
			arrays = arrays[:len(arrays)-1]
		case tokOperator:
			if len(arrays) > 0 {
				// Operators never appear inside arrays; recover from a broken stream.
				arrays = nil
			}
			if tok.text == "BI" {
				lx.skipInlineImage()
			} else {
				w.apply(tok.text, operands)
			}
			operands = operands[:0]
			continue
		}

		if len(arrays) > 0 {
			arrays[len(arrays)-1] = append(arrays[len(arrays)-1], tok)
		} else {
			operands = append(operands, tok)
		}
	}
	return strings.TrimSpace(w.out.String())
}
