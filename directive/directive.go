// Package directive finds texture directives in fragment shader source and
// computes the minimal set of texture binds and unbinds between two parses.
//
// A directive is a sampler uniform followed by a same-line comment naming the
// image to bind to it:
//
//	uniform sampler2D noise; // ../textures/noise.png
package directive

import (
	"regexp"
	"strings"
)

// Directive pairs a sampler uniform name with the relative path of the image
// bound to it. Two directives are the same binding only when both fields
// match.
type Directive struct {
	ID   string
	Path string
}

func (d Directive) String() string {
	return d.ID + " <- " + d.Path
}

// pattern matches a single-line directive; multi-line declarations are not
// supported.
var pattern = regexp.MustCompile(`(?m)^uniform sampler2D ([A-Za-z_]\w*);[ \t]*//[ \t]*(.*\S)[ \t]*$`)

// Parse returns the directives in source, in source order. Lines that do not
// have exactly the directive shape are ignored.
func Parse(source string) []Directive {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	matches := pattern.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Directive, 0, len(matches))
	for _, m := range matches {
		out = append(out, Directive{ID: m[1], Path: m[2]})
	}
	return out
}

// Dedupe resolves identifier conflicts. When an identifier is declared more
// than once, the last occurrence wins; the result keeps the surviving
// directives in the order of their last occurrence.
func Dedupe(ds []Directive) []Directive {
	last := make(map[string]int, len(ds))
	for i, d := range ds {
		last[d.ID] = i
	}
	if len(last) == len(ds) {
		return ds
	}
	out := make([]Directive, 0, len(last))
	for i, d := range ds {
		if last[d.ID] == i {
			out = append(out, d)
		}
	}
	return out
}

// Diff compares the currently bound directives against a new parse. unbind
// is old minus new and bind is new minus old, both by value and in the order
// of their respective inputs. Entries present in both are absent from the
// result, so reordering directives produces no work.
func Diff(old, next []Directive) (unbind, bind []Directive) {
	inOld := make(map[Directive]struct{}, len(old))
	for _, d := range old {
		inOld[d] = struct{}{}
	}
	inNext := make(map[Directive]struct{}, len(next))
	for _, d := range next {
		inNext[d] = struct{}{}
	}
	for _, d := range old {
		if _, ok := inNext[d]; !ok {
			unbind = append(unbind, d)
		}
	}
	for _, d := range next {
		if _, ok := inOld[d]; !ok {
			bind = append(bind, d)
		}
	}
	return unbind, bind
}
