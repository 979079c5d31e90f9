// Package selectors builds CSS selectors from untrusted values.
package selectors

import "strings"

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)

// Quote returns s as a double-quoted CSS string literal.
func Quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}

// ByID matches an element by id. Platform ids contain characters such as "~"
// and ":" that are not valid in the "#id" form.
func ByID(id string) string {
	return "[id=" + Quote(id) + "]"
}

// AttrEquals matches elements whose attribute equals value.
func AttrEquals(attr, value string) string {
	return "[" + attr + "=" + Quote(value) + "]"
}

// Join combines alternatives into one selector list.
func Join(alternatives ...string) string {
	return strings.Join(alternatives, ", ")
}
