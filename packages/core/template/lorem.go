package template

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

var loremSanitizer = strings.NewReplacer(`"`, "", "{", "", "}", "", "[", "", "]", "")

// Lorem returns exactly n characters of filler text ending in a period.
func Lorem(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for b.Len() < n {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(loremSanitizer.Replace(gofakeit.LoremIpsumSentence(8)))
	}
	return b.String()[:n-1] + "."
}
