package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3helper/internal/errs"
)

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "rspec-testfile.txt", true},
		{"", "anything", true},
		{"rspec-testfile.txt", "rspec-testfile.txt", true},
		{"rspec-??stfile.txt", "rspec-testfile.txt", true},
		{"rspec-testfile.txt?", "rspec-testfile.txt", false},
		{"rspec-te*", "rspec-testfile.txt", true},
		{"rspec-testfile.txtz*", "rspec-testfile.txt", false},
		{"*.txt", "notes.txt", true},
		{"*.txt", "notes.txt.bak", false},
		{"?", "", false},
		// regexp metacharacters are literal
		{"a.c", "abc", false},
		{"a.c", "a.c", true},
		{"(x)+[y]", "(x)+[y]", true},
		{"^$", "^$", true},
		{`back\*slash`, `back\anything-slash`, true},
		// '*' and '?' cross newlines
		{"*", "line1\nline2.txt", true},
		{"line1?line2.txt", "line1\nline2.txt", true},
		{"*.txt", "notes.txt\n", false},
		{"\xff*", "\xffname", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchGlob(tt.pattern, tt.name))
		})
	}
}

func TestGlobToRegexp_Source(t *testing.T) {
	for pattern, want := range map[string]string{
		"*.txt": `(?s)^.*\.txt$`,
		"a?b":   `(?s)^a.b$`,
		"":      `(?s)^.*$`,
	} {
		re, err := GlobToRegexp(pattern)
		require.NoError(t, err)
		assert.Equal(t, want, re.String())
	}
}

func TestGlobToRegexp_InvalidUTF8(t *testing.T) {
	re, err := GlobToRegexp("\xff*")
	assert.Nil(t, re)
	assert.True(t, errs.IsInvalidInput(err))
}
