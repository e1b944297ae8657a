package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "****cdef", Mask("abcdef"))
}

func TestMask_MultiByte(t *testing.T) {
	got := Mask("compte-éèêë")

	assert.Equal(t, "****éèêë", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "****", Mask("ééé"))
}
