package usfm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/scriptorium/scripture"
)

var (
	usfmLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Marker", Pattern: `\\\+?[A-Za-z][A-Za-z0-9]*\*?`},
		{Name: "Newline", Pattern: `\n`},
		{Name: "Space", Pattern: `[\t\f\r ]+`},
		{Name: "Word", Pattern: `[^\\\s]+`},
		{Name: "Backslash", Pattern: `\\`},
	})

	markerTokenType    = mustTokenType("Marker")
	newlineTokenType   = mustTokenType("Newline")
	spaceTokenType     = mustTokenType("Space")
	wordTokenType      = mustTokenType("Word")
	backslashTokenType = mustTokenType("Backslash")
)

// markers whose whole line is metadata and never reaches the page
var lineMarkers = map[string]bool{
	"ide": true, "rem": true, "usfm": true, "sts": true, "toc": true, "toca": true,
	"mt": true, "mte": true, "ms": true, "mr": true, "s": true, "sr": true, "r": true,
	"d": true, "sp": true, "cl": true, "cp": true, "periph": true, "imt": true, "is": true,
	"ip": true, "io": true, "iot": true,
}

var paragraphMarkers = map[string]bool{
	"p": true, "m": true, "pi": true, "nb": true, "pc": true, "pm": true, "pmo": true,
	"pmc": true, "pmr": true, "mi": true, "b": true, "cls": true, "li": true, "ph": true,
}

var poetryMarkers = map[string]bool{"q": true, "qm": true, "qr": true, "qc": true, "qa": true}

// character markers are transparent: the marker goes, its content stays
var characterMarkers = map[string]bool{
	"wj": true, "add": true, "nd": true, "bd": true, "it": true, "em": true, "bdit": true,
	"sc": true, "qs": true, "qac": true, "w": true, "no": true, "sup": true, "tl": true,
	"k": true, "pn": true, "png": true, "ord": true, "qt": true, "sls": true, "lit": true,
	"dc": true, "bk": true, "rq": true, "ior": true, "iqt": true, "wg": true, "wh": true,
	"wa": true, "rb": true, "pro": true, "ndx": true, "addpn": true,
}

// note markers are dropped together with their content
var noteMarkers = map[string]bool{"f": true, "fe": true, "ef": true, "x": true, "ex": true, "fig": true}

// Tokenize scans src and returns its tokens in document order. Invalid
// UTF-8 sequences are replaced with U+FFFD and the input is normalized to
// NFC first.
func Tokenize(src []byte) []Token {
	return TokenizeString(string(src))
}

// TokenizeString is Tokenize for string input.
func TokenizeString(src string) []Token {
	t := &tokenizer{cat: scripture.Normal}
	t.lex(norm.NFC.String(strings.ToValidUTF8(src, "\uFFFD")))
	t.run()
	return t.out
}

type tokenizer struct {
	toks []lexer.Token
	pos  int

	out  []Token
	ref  scripture.Reference
	cat  scripture.Category
	text strings.Builder

	pendingSpace bool
	// inside \w ... \w* after the '|' attribute separator
	skipAttrs bool
}

func (t *tokenizer) lex(src string) {
	lex, err := usfmLexer.LexString("", src)
	if err != nil {
		t.literal(src)
		return
	}
	for {
		tok, err := lex.Next()
		if err != nil {
			// rules cover every byte, so this is unreachable in practice
			return
		}
		if tok.EOF() {
			return
		}
		t.toks = append(t.toks, tok)
	}
}

func (t *tokenizer) run() {
	for t.pos < len(t.toks) {
		tok := t.toks[t.pos]
		t.pos++
		switch tok.Type {
		case markerTokenType:
			t.marker(tok.Value)
		case newlineTokenType, spaceTokenType:
			t.space()
		case wordTokenType:
			t.word(tok.Value)
		case backslashTokenType:
			t.literal(tok.Value)
		}
	}
	t.flush()
}

func (t *tokenizer) marker(raw string) {
	name, closing := splitMarker(raw)
	base := strings.TrimRight(name, "0123456789")

	if t.skipAttrs && closing && name == "w" {
		t.skipAttrs = false
		return
	}
	switch {
	case closing && characterMarkers[name]:
		return
	case closing:
		t.literal(raw)
	case name == "id":
		t.book()
	case name == "c":
		t.chapter(raw)
	case name == "v":
		t.verse(raw)
	case base == "h":
		t.heading()
	case lineMarkers[base]:
		t.skipLine()
	case paragraphMarkers[base]:
		t.emit(Token{Kind: Paragraph, Category: t.cat, Ref: t.ref})
	case poetryMarkers[base]:
		t.emit(Token{Kind: Poetry, Category: t.cat, Ref: t.ref, Level: markerLevel(name, base)})
	case characterMarkers[name]:
		// content continues in the current category
	case noteMarkers[name]:
		t.skipNote(name)
	default:
		t.literal(raw)
	}
}

func (t *tokenizer) word(w string) {
	if t.skipAttrs {
		return
	}
	if i := strings.IndexByte(w, '|'); i >= 0 && t.inWordMarker() {
		w = w[:i]
		t.skipAttrs = true
	}
	if w == "" {
		return
	}
	t.literal(w)
}

// inWordMarker reports whether the most recent character marker was \w.
func (t *tokenizer) inWordMarker() bool {
	for i := t.pos - 1; i >= 0; i-- {
		tok := t.toks[i]
		if tok.Type != markerTokenType {
			continue
		}
		name, closing := splitMarker(tok.Value)
		if name == "w" {
			return !closing
		}
		if characterMarkers[name] {
			continue
		}
		return false
	}
	return false
}

func (t *tokenizer) literal(s string) {
	if t.pendingSpace && t.text.Len() > 0 {
		t.text.WriteByte(' ')
	}
	t.pendingSpace = false
	t.text.WriteString(s)
}

func (t *tokenizer) space() {
	if !t.skipAttrs {
		t.pendingSpace = true
	}
}

func (t *tokenizer) flush() {
	t.pendingSpace = false
	if t.text.Len() == 0 {
		return
	}
	t.out = append(t.out, Token{Kind: Text, Category: t.cat, Text: t.text.String(), Ref: t.ref})
	t.text.Reset()
}

func (t *tokenizer) emit(tok Token) {
	t.flush()
	t.skipAttrs = false
	t.out = append(t.out, tok)
}

// next returns the next non-space token on the current line without consuming it.
func (t *tokenizer) next() (lexer.Token, int, bool) {
	for i := t.pos; i < len(t.toks); i++ {
		switch t.toks[i].Type {
		case spaceTokenType:
			continue
		case newlineTokenType:
			return lexer.Token{}, 0, false
		default:
			return t.toks[i], i, true
		}
	}
	return lexer.Token{}, 0, false
}

func (t *tokenizer) book() {
	tok, i, ok := t.next()
	if !ok || tok.Type != wordTokenType {
		t.skipLine()
		return
	}
	t.pos = i + 1
	code := strings.ToUpper(tok.Value)
	t.ref = scripture.Reference{Book: code}
	t.cat = scripture.Normal
	t.emit(Token{Kind: Book, Category: scripture.Normal, Text: code, Ref: t.ref})
	t.skipLine()
}

func (t *tokenizer) chapter(raw string) {
	tok, i, ok := t.next()
	if !ok || tok.Type != wordTokenType {
		t.literal(raw)
		return
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil || n <= 0 {
		t.literal(raw)
		return
	}
	t.pos = i + 1
	t.ref = scripture.Reference{Book: t.ref.Book, Chapter: n}
	t.cat = scripture.Normal
	t.emit(Token{Kind: ChapterNumber, Category: scripture.Chapter, Text: tok.Value, Ref: t.ref})
}

func (t *tokenizer) verse(raw string) {
	tok, i, ok := t.next()
	if !ok || tok.Type != wordTokenType {
		t.literal(raw)
		return
	}
	n := leadingNumber(tok.Value)
	if n <= 0 {
		t.literal(raw)
		return
	}
	t.pos = i + 1
	t.ref = scripture.Reference{Book: t.ref.Book, Chapter: t.ref.Chapter, Verse: n}
	t.cat = scripture.Verse
	t.emit(Token{Kind: VerseNumber, Category: scripture.Verse, Text: tok.Value, Ref: t.ref})
}

func (t *tokenizer) heading() {
	t.flush()
	var words []string
	for t.pos < len(t.toks) {
		tok := t.toks[t.pos]
		if tok.Type == newlineTokenType {
			break
		}
		t.pos++
		switch tok.Type {
		case wordTokenType, backslashTokenType:
			words = append(words, tok.Value)
		case markerTokenType:
			if name, _ := splitMarker(tok.Value); !characterMarkers[name] {
				words = append(words, tok.Value)
			}
		}
	}
	if len(words) == 0 {
		return
	}
	t.emit(Token{Kind: Heading, Category: scripture.Header, Text: strings.Join(words, " "), Ref: t.ref})
}

func (t *tokenizer) skipLine() {
	for t.pos < len(t.toks) && t.toks[t.pos].Type != newlineTokenType {
		t.pos++
	}
}

// skipNote drops everything up to the closing marker of name. A structural
// marker ends an unterminated note and is processed normally.
func (t *tokenizer) skipNote(name string) {
	for t.pos < len(t.toks) {
		tok := t.toks[t.pos]
		if tok.Type == markerTokenType {
			n, closing := splitMarker(tok.Value)
			if closing && n == name {
				t.pos++
				return
			}
			if !closing && isStructural(n) {
				return
			}
		}
		t.pos++
	}
}

func isStructural(name string) bool {
	base := strings.TrimRight(name, "0123456789")
	return name == "c" || name == "v" || name == "id" || base == "h" ||
		paragraphMarkers[base] || poetryMarkers[base]
}

// splitMarker returns the marker name without the leading '\', the nesting
// '+' and the closing '*'.
func splitMarker(raw string) (string, bool) {
	name := strings.TrimPrefix(raw, `\`)
	name = strings.TrimPrefix(name, "+")
	closing := strings.HasSuffix(name, "*")
	return strings.TrimSuffix(name, "*"), closing
}

func markerLevel(name, base string) int {
	if n, err := strconv.Atoi(strings.TrimPrefix(name, base)); err == nil && n > 0 {
		return n
	}
	return 1
}

func leadingNumber(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func mustTokenType(name string) lexer.TokenType {
	tt, ok := usfmLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
