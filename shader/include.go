package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

var (
	// ErrMalformedInclude is returned for an #include line without a quoted path.
	ErrMalformedInclude = errors.New("malformed include directive")

	// ErrIncludeCycle is returned when a file includes itself, directly or not.
	ErrIncludeCycle = errors.New("include cycle")

	// ErrIncludeDepth is returned when nesting exceeds IncludeExpander.MaxDepth.
	ErrIncludeDepth = errors.New("include nesting too deep")
)

// IncludeError reports a failed include. Line is the 1-based line of the
// offending directive in the top-level source.
type IncludeError struct {
	Line int
	Path string
	Err  error
}

func (e *IncludeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: include %q: %v", e.Line, e.Path, e.Err)
}

func (e *IncludeError) Unwrap() error { return e.Err }

var (
	includeLineRE = regexp.MustCompile(`^\s*#\s*include\b(.*)$`)
	includeArgRE  = regexp.MustCompile(`^\s*"([^"]+)"\s*(?://.*)?$`)
)

const defaultMaxDepth = 16

// IncludeExpander resolves `#include "file"` directives against a file
// system. Paths are relative to the including file; the top-level source
// sits at the root of FS. Each file is expanded at most once per call, later
// includes of the same file become empty lines.
type IncludeExpander struct {
	FS       fs.FS
	MaxDepth int
}

// Expand implements Expander.
func (x *IncludeExpander) Expand(source string) (string, error) {
	st := &expandState{
		x:        x,
		seen:     map[string]bool{},
		stack:    map[string]bool{},
		maxDepth: x.MaxDepth,
	}
	if st.maxDepth <= 0 {
		st.maxDepth = defaultMaxDepth
	}
	var b strings.Builder
	lines := strings.Split(normalize(source), "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		target, ok, err := parseInclude(line)
		if err != nil {
			return "", &IncludeError{Line: i + 1, Err: err}
		}
		if !ok {
			b.WriteString(line)
			continue
		}
		if err := st.include(&b, ".", target, 1); err != nil {
			return "", &IncludeError{Line: i + 1, Path: target, Err: err}
		}
	}
	return b.String(), nil
}

type expandState struct {
	x        *IncludeExpander
	seen     map[string]bool
	stack    map[string]bool
	maxDepth int
}

func (st *expandState) include(b *strings.Builder, dir, target string, depth int) error {
	if depth > st.maxDepth {
		return ErrIncludeDepth
	}
	name := path.Clean(path.Join(dir, target))
	if !fs.ValidPath(name) {
		return fmt.Errorf("%w: path escapes the shader directory", fs.ErrInvalid)
	}
	if st.stack[name] {
		return ErrIncludeCycle
	}
	if st.seen[name] {
		return nil
	}
	if st.x.FS == nil {
		return fs.ErrNotExist
	}
	data, err := fs.ReadFile(st.x.FS, name)
	if err != nil {
		return err
	}
	st.seen[name] = true
	st.stack[name] = true
	defer delete(st.stack, name)

	body := strings.TrimSuffix(normalize(string(data)), "\n")
	for i, line := range strings.Split(body, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		nested, ok, err := parseInclude(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, i+1, err)
		}
		if !ok {
			b.WriteString(line)
			continue
		}
		if err := st.include(b, path.Dir(name), nested, depth+1); err != nil {
			return fmt.Errorf("%s:%d: %w", name, i+1, err)
		}
	}
	return nil
}

// parseInclude reports whether line is an include directive and returns its
// target.
func parseInclude(line string) (string, bool, error) {
	m := includeLineRE.FindStringSubmatch(line)
	if m == nil {
		return "", false, nil
	}
	arg := includeArgRE.FindStringSubmatch(m[1])
	if arg == nil {
		return "", false, ErrMalformedInclude
	}
	return arg[1], true, nil
}
