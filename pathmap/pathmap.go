// Package pathmap implements the ordered regex path-rewrite chain applied
// to every interned source path: the same regexp.Compile-then-apply idiom
// the debugger's objdump reader uses for its own line-matching patterns,
// turned into a reusable chain instead of a one-off match.
package pathmap

import (
	"fmt"
	"regexp"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Rule is one compiled (pattern, replacement) pair. Replacement follows
// regexp.Regexp.ReplaceAllString syntax ($1, $name, ...).
type Rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Chain is an ordered list of Rules, applied first-match-wins: the first
// rule whose pattern matches the path decides its replacement, and later
// rules are not consulted.
type Chain struct {
	rules []Rule
}

// Compile builds a Chain from (pattern, replacement) string pairs, in the
// order given. A malformed pattern is reported as a curated ParseError
// naming the bad pattern, not the underlying regexp package's error text
// alone, so CLI users see which mapping was at fault.
func Compile(patterns, replacements []string) (*Chain, error) {
	if len(patterns) != len(replacements) {
		return nil, curatederrors.Errorf(curatederrors.ParseError, "path mapping pattern/replacement count mismatch")
	}

	c := &Chain{rules: make([]Rule, 0, len(patterns))}
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, curatederrors.Errorf(curatederrors.ParseError, fmt.Errorf("path mapping pattern %q: %w", p, err))
		}
		c.rules = append(c.rules, Rule{pattern: re, replacement: replacements[i]})
	}
	return c, nil
}

// Map implements breakpad.PathMapper: it applies the first matching rule's
// replacement. The second result is false when no rule matched, so the
// caller (not this chain) decides what an unmapped path becomes and can
// warn about it.
func (c *Chain) Map(absolutePath string) (string, bool) {
	for _, r := range c.rules {
		if r.pattern.MatchString(absolutePath) {
			return r.pattern.ReplaceAllString(absolutePath, r.replacement), true
		}
	}
	return "", false
}

// Len reports how many rules the chain holds.
func (c *Chain) Len() int {
	return len(c.rules)
}
