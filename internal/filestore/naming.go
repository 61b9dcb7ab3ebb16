package filestore

import (
	"path"
	"strconv"
	"strings"
)

// maxNameAttempts bounds the suffix search of FindAvailableName.
var maxNameAttempts = 10000

// maxCounter is the largest "-N" suffix read as a counter; larger numbers
// stay part of the stem so the search cannot overflow.
const maxCounter = 1_000_000_000

// splitName breaks key into directory, stem, numeric counter and
// extension: "docs/report-3.txt" -> ("docs/", "report", 3, ".txt").
// counter is 0 when the stem carries no "-N" suffix or N exceeds
// maxCounter. Dot-files such as
// ".env" have no extension.
func splitName(key string) (dir, stem string, counter int, ext string) {
	dir, file := path.Split(key)

	ext = path.Ext(file)
	if ext == file || ext == "." {
		ext = ""
	}
	stem = strings.TrimSuffix(file, ext)

	if i := strings.LastIndexByte(stem, '-'); i > 0 && i < len(stem)-1 {
		digits := stem[i+1:]
		if isDigits(digits) && digits[0] != '0' {
			if n, err := strconv.Atoi(digits); err == nil && n <= maxCounter {
				return dir, stem[:i], n, ext
			}
		}
	}
	return dir, stem, 0, ext
}

// candidateName builds the n-th alternative for key.
func candidateName(dir, stem string, n int, ext string) string {
	return dir + stem + "-" + strconv.Itoa(n) + ext
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
