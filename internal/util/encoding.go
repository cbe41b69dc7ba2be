package util

import (
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD so a passphrase typed on different platforms
// derives the same bytes.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
