// Package scripture holds the vocabulary shared by the tokenizer, the layout
// engine and the archive codec: text categories and verse references.
package scripture

import (
	"fmt"
	"strings"
)

// Category selects the style a piece of text is laid out with.
type Category uint8

const (
	Verse Category = iota
	Normal
	Header
	Chapter
)

var categoryNames = [...]string{"verse", "normal", "header", "chapter"}

// Categories lists every category in numeric order.
func Categories() []Category { return []Category{Verse, Normal, Header, Chapter} }

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", c)
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool { return int(c) < len(categoryNames) }

// ParseCategory is the inverse of String, case-insensitive.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
