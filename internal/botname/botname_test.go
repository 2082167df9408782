package botname

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedSource struct {
	values []int
	index  int
}

func (f *fixedSource) IntN(n int) int {
	if f.index >= len(f.values) {
		return 0
	}
	v := f.values[f.index] % n
	f.index++
	return v
}

func TestGenerate(t *testing.T) {
	name := NewGenerator("Mortal", nil).Generate()
	assert.Regexp(t, regexp.MustCompile(`^Mortal_[a-zA-Z]{4}$`), name)
}

func TestGenerateWithSource(t *testing.T) {
	g := NewGenerator("Mortal", &fixedSource{values: []int{0, 25, 26, 51}})
	assert.Equal(t, "Mortal_azAZ", g.Generate())
	assert.Equal(t, "Mortal_aaaa", g.Generate())
}

func TestGenerateWithoutPrefix(t *testing.T) {
	g := NewGenerator("", &fixedSource{values: []int{1, 2, 3, 4}})
	assert.Equal(t, "bcde", g.Generate())
}

func TestSeededIsReproducible(t *testing.T) {
	a := NewGenerator("Mortal", Seeded(42))
	b := NewGenerator("Mortal", Seeded(42))
	for range 5 {
		assert.Equal(t, a.Generate(), b.Generate())
	}
	assert.NotEqual(t, NewGenerator("Mortal", Seeded(1)).Generate(), NewGenerator("Mortal", Seeded(2)).Generate())
}
