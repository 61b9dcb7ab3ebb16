package filestore

import "testing"

// SetMaxNameAttempts lowers the free-name search bound for one test.
func SetMaxNameAttempts(t *testing.T, n int) {
	prev := maxNameAttempts
	maxNameAttempts = n
	t.Cleanup(func() { maxNameAttempts = prev })
}
