// Package cite rewrites citation keys embedded in markdown, e.g. after a
// reference manager renames entries. Pure string transform; no I/O.
package cite

import "regexp"

// Pandoc-style citekeys: @ followed by a letter/digit/underscore, then
// any run of the extended citekey characters.
var keyPattern = regexp.MustCompile(`@([A-Za-z0-9_][A-Za-z0-9_:.#$%&+?<>~/-]*)`)

// Rewrite replaces every @key occurrence whose key appears in mapping.
// Keys without a mapping entry are left untouched.
func Rewrite(markdown string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return markdown
	}
	return keyPattern.ReplaceAllStringFunc(markdown, func(match string) string {
		if repl, ok := mapping[match[1:]]; ok {
			return "@" + repl
		}
		return match
	})
}

// Keys lists the distinct citation keys in order of first appearance.
func Keys(markdown string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range keyPattern.FindAllStringSubmatch(markdown, -1) {
		key := m[1]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
