// Package normalize cleans text scraped from the lottery sources before it is
// parsed or compared.
package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Doubly escaped numeric entities the directory API emits for brackets.
var entityFixer = strings.NewReplacer(
	"&&#35;40;", "(",
	"&&#35;41;", ")",
	"&#35;40;", "(",
	"&#35;41;", ")",
	"&amp;", "&",
)

var amountCleaner = strings.NewReplacer(",", "", "원", "", " ", "")

// Unescape decodes HTML entities, including the doubled forms the
// retailer directory returns, and trims surrounding whitespace.
func Unescape(s string) string {
	if s == "" {
		return ""
	}
	s = entityFixer.Replace(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

// Amount parses money or count text such as "2,345,678,900원" into an integer.
func Amount(s string) (int64, error) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(cleaned, 10, 64)
}

// Int parses a small integer, tolerating surrounding whitespace and separators.
func Int(s string) (int, error) {
	n, err := Amount(s)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Between returns the text strictly between the first open marker and the
// next close marker after it.
func Between(s, open, close string) (string, bool) {
	i := strings.Index(s, open)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(open):]
	j := strings.Index(rest, close)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// Lines splits text into trimmed, non-empty lines.
func Lines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(strings.ReplaceAll(l, "\u00a0", " ")); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Collapse squeezes internal whitespace runs to a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
