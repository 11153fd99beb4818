package binding

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleData() map[string]any {
	return map[string]any{
		"name":  "Genesis",
		"pages": 12,
		"books": []string{"GEN", "EXO"},
		"first": map[string]any{"book": "GEN", "chapter": 1},
	}
}

func TestInterpolate(t *testing.T) {
	data := sampleData()
	cases := []struct {
		in, want string
	}{
		{"${name}", "Genesis"},
		{"${name}-${pages}", "Genesis-12"},
		{"${ name }", "Genesis"},
		{"${books[1]}", "EXO"},
		{"${first.book} ${first.chapter}", "GEN 1"},
		{"${missing}", "${missing}"},
		{"${books[5]}", "${books[5]}"},
		{"${}", "${}"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Interpolate(c.in, data), c.in)
	}
	assert.Equal(t, "${name}", Interpolate("${name}", nil))
}

func TestUnresolved(t *testing.T) {
	assert.Equal(t, []string{"missing", "books[9]"}, Unresolved("${name}-${missing}-${books[9]}", sampleData()))
	assert.Empty(t, Unresolved("${name}", sampleData()))
}

func TestOutputName(t *testing.T) {
	data := sampleData()
	assert.Equal(t, "genesis-12.pdf", OutputName("${name} ${pages}", data, ".pdf", "x"))
	assert.Equal(t, "genesis.scrp", OutputName("${name}${missing}", data, "scrp", "x"))
	assert.Equal(t, "fallback.pdf", OutputName("${missing}", data, ".pdf", "Fallback"))
	assert.Equal(t, "output", OutputName("", nil, "", ""))
	assert.Equal(t, filepath.Join("out", "gen-1.json"), OutputPath("out", "${first.book}:${first.chapter}", data, ".json", "x"))
}
