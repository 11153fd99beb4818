package scripture

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Reference locates a verse. Chapter and Verse are 0 when the reference
// addresses a whole book or a whole chapter.
type Reference struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter,omitempty"`
	Verse   int    `json:"verse,omitempty"`
}

// IsZero reports whether nothing has been located yet.
func (r Reference) IsZero() bool { return r.Book == "" && r.Chapter == 0 && r.Verse == 0 }

// Compare orders by book name, then chapter, then verse. Callers that need
// canonical book order compare with CompareIn.
func (r Reference) Compare(o Reference) int {
	if c := strings.Compare(r.Book, o.Book); c != 0 {
		return c
	}
	return r.compareNumbers(o)
}

// CompareIn orders references whose books are ranked by ordinal.
func (r Reference) CompareIn(o Reference, ordinal func(book string) int) int {
	if c := cmp.Compare(ordinal(r.Book), ordinal(o.Book)); c != 0 {
		return c
	}
	return r.compareNumbers(o)
}

func (r Reference) compareNumbers(o Reference) int {
	if c := cmp.Compare(r.Chapter, o.Chapter); c != 0 {
		return c
	}
	return cmp.Compare(r.Verse, o.Verse)
}

// String renders the reference as "GEN 1:3", "GEN 1" or "GEN".
func (r Reference) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	if r.Chapter > 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(r.Chapter))
		if r.Verse > 0 {
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(r.Verse))
		}
	}
	return sb.String()
}

//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	BookPrefix string       `@Int?`
	BookName   string       `@Ident`
	ChapterRef *chapterPart `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterPart struct {
	Chapter int  `"."? @Int`
	Verse   *int `( (":" | ".") @Int )?`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9]*`},
	{Name: "Punct", Pattern: `[.:]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// ParseReference parses references such as "GEN", "GEN 1", "GEN 1:3",
// "Gen.1.3" or "1JN 3:16". Book codes are upper-cased.
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reference{}, fmt.Errorf("empty reference string")
	}
	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference %q: %w", s, err)
	}
	ref := Reference{Book: strings.ToUpper(parsed.BookPrefix + parsed.BookName)}
	if parsed.ChapterRef != nil {
		ref.Chapter = parsed.ChapterRef.Chapter
		if parsed.ChapterRef.Verse != nil {
			ref.Verse = *parsed.ChapterRef.Verse
		}
	}
	return ref, nil
}
