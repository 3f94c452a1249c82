package cite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite(t *testing.T) {
	md := "As shown in [@smith2019; @jones2020], and later @smith2019 again."
	out := Rewrite(md, map[string]string{"smith2019": "smith2019a"})
	assert.Equal(t, "As shown in [@smith2019a; @jones2020], and later @smith2019a again.", out)
}

func TestRewriteLeavesUnknownKeys(t *testing.T) {
	md := "See @doe2021 for details."
	assert.Equal(t, md, Rewrite(md, map[string]string{"other": "x"}))
	assert.Equal(t, md, Rewrite(md, nil))
}

func TestRewriteExtendedKeyCharacters(t *testing.T) {
	md := "Cited as @van_der_Berg:2018#1 here"
	out := Rewrite(md, map[string]string{"van_der_Berg:2018#1": "berg2018"})
	assert.Equal(t, "Cited as @berg2018 here", out)
}

func TestKeys(t *testing.T) {
	md := "Both @a2001 and @b2002, then @a2001 once more."
	assert.Equal(t, []string{"a2001", "b2002"}, Keys(md))
	assert.Nil(t, Keys("no citations here"))
}
