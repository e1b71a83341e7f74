package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName makes name safe to use as a single path segment.
// Separators, colons, and asterisks become dashes and other unsafe characters
// are dropped. Leading dots are stripped so the result is never hidden or a
// relative reference.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	return strings.TrimSpace(strings.TrimLeft(name, "."))
}
