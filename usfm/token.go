// Package usfm turns USFM-style scripture markup into a flat token stream.
//
// The tokenizer is lenient: markers it does not understand are kept as text of
// the current category, so any input produces some output.
package usfm

import (
	"fmt"

	"github.com/ByLCY/scriptorium/scripture"
)

// Kind classifies a token.
type Kind uint8

const (
	Text          Kind = iota // run of words
	VerseNumber               // label of a \v marker
	ChapterNumber             // number of a \c marker
	Heading                   // \h running header text
	Paragraph                 // paragraph break
	Poetry                    // poetry line break, Level holds the indent level
	Book                      // \id book identification
)

var kindNames = [...]string{"text", "verse", "chapter", "heading", "paragraph", "poetry", "book"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Token is one element of the document in reading order.
type Token struct {
	Kind     Kind                `json:"kind"`
	Category scripture.Category  `json:"category"`
	Text     string              `json:"text,omitempty"`
	Ref      scripture.Reference `json:"ref"`
	Level    int                 `json:"level,omitempty"`
}

// Categories returns the set of categories that carry visible text in toks.
func Categories(toks []Token) []scripture.Category {
	var seen [4]bool
	for _, t := range toks {
		switch t.Kind {
		case Text, VerseNumber, ChapterNumber, Heading:
			if t.Text != "" && t.Category.Valid() {
				seen[t.Category] = true
			}
		}
	}
	var out []scripture.Category
	for _, c := range scripture.Categories() {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}
