package filestore

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/koustreak/s3helper/internal/errs"
)

// GlobToRegexp translates a filename glob into an anchored regexp.
// '*' matches any run of characters (newlines included), '?' exactly one;
// everything else, brackets too, is literal. An empty pattern matches
// everything.
func GlobToRegexp(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !utf8.ValidString(pattern) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "glob %q is not valid UTF-8", pattern)
	}
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, ".*")
	quoted = strings.ReplaceAll(quoted, `\?`, ".")

	re, err := regexp.Compile(`(?s)^` + quoted + `$`)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid glob", err)
	}
	return re, nil
}

// MatchGlob reports whether name matches the glob pattern. An invalid
// pattern matches nothing.
func MatchGlob(pattern, name string) bool {
	re, err := GlobToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}
