// Package textnorm canonicalizes free text so that catalog lookups,
// supplier resolution and embedding inputs compare the same strings.
package textnorm

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases the input, strips diacritics, replaces punctuation
// with spaces and collapses whitespace runs. Normalizing an already
// normalized string returns it unchanged.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; fall back to the raw input.
		out = s
	}
	out = strings.ToLower(out)

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// SafeFilename converts an arbitrary upload filename into a name that is
// safe to use as an object-store key: ASCII, lower case, underscores for
// separators, original extension preserved, plus a short random suffix to
// avoid collisions.
func SafeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	name = Normalize(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		name = "file"
	}

	return name + "_" + uuid.New().String()[:8] + ext
}
