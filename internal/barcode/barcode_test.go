package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "digits", input: "3605168123456", want: "3605168123456"},
		{name: "spaces", input: "3 605168 123456", want: "3605168123456"},
		{name: "separators", input: "EAN: 3605-168.123456", want: "3605168123456"},
		{name: "no digits", input: "abc", want: ""},
		{name: "non ascii digits dropped", input: "١٢٣4", want: "4"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"", "x", "12 34", "3605168123456", "  00-11 ", "ref:ABC123XYZ", "€12,50"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	for _, d := range []string{"12345678", "123456789012", "3605168123456", "13605168123456"} {
		assert.Equal(t, d, Normalize(d))
		assert.True(t, IsValidFormat(d))
	}
}

func TestIsValidFormat(t *testing.T) {
	assert.False(t, IsValidFormat("1234567"))
	assert.False(t, IsValidFormat("1234567890"))
	assert.False(t, IsValidFormat("123456789012345"))
	assert.True(t, IsValidFormat("3605 168 123456"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("3605168123456", "3605 168 123 456"))
	assert.Equal(t, 0.0, Similarity("3605168123456", "605168123456"))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder("00000000"))
	assert.False(t, IsPlaceholder("00000001"))
	assert.False(t, IsPlaceholder(""))
}
