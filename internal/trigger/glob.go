package trigger

import (
	"fmt"
	"regexp"
	"strings"
)

// TagGlobRegexp translates a declared tag glob into an anchored regular
// expression. The glob dialect is the one CI workflows use for tag filters:
// `[...]` is a character class, a trailing `+` repeats the previous element,
// `*` matches any run of characters, `?` matches one character, everything
// else is literal. The default pattern `[0-9]+.[0-9]+.[0-9]+*` therefore
// translates to `^\d+\.\d+\.\d+.*$`.
func TagGlobRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '[':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == ']' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated character class")
			}
			class := string(runes[i : end+1])
			if class == "[0-9]" {
				b.WriteString(`\d`)
			} else {
				b.WriteString(class)
			}
			i = end
		case '+':
			b.WriteString("+")
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}
