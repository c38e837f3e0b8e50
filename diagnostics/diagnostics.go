// Package diagnostics parses shader compiler logs and maps the reported
// lines, which refer to the compiled source, back to the editor source.
package diagnostics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CompilerError is one error reported by the driver or translator. Line
// refers to the compiled source; zero means the log carried no location.
type CompilerError struct {
	Line    int
	Message string
}

// Marker is an error located in the original editor source. Line is always
// at least 1.
type Marker struct {
	Line    int
	Message string
}

var (
	// ANGLE / Mesa style: "ERROR: 0:12: 'foo' : undeclared identifier"
	angleRE = regexp.MustCompile(`^\s*ERROR:\s*(\d+):(\d+):\s*(.*)$`)
	// NVIDIA style: "0(12) : error C1008: undefined variable "foo""
	nvidiaRE = regexp.MustCompile(`^\s*(\d+)\((\d+)\)\s*:\s*error\b\s*(.*)$`)
	// Located warnings in either style.
	warningRE = regexp.MustCompile(`^\s*(?:WARNING:\s*\d+:\d+:|\d+\(\d+\)\s*:\s*warning\b)`)
)

// ParseLog extracts the errors from a compiler info log. Warnings are
// dropped. A non-empty log with no recognizable error or warning line yields
// a single location-less error carrying the whole log.
func ParseLog(log string) []CompilerError {
	var errs []CompilerError
	recognized := 0
	for _, line := range strings.Split(strings.ReplaceAll(log, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(strings.TrimRight(line, "\x00"), " \t")
		if warningRE.MatchString(line) {
			recognized++
			continue
		}
		if m := angleRE.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			errs = append(errs, CompilerError{Line: n, Message: strings.TrimSpace(line)})
			recognized++
			continue
		}
		if m := nvidiaRE.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			errs = append(errs, CompilerError{Line: n, Message: strings.TrimSpace(line)})
			recognized++
		}
	}
	if recognized == 0 {
		if text := strings.TrimSpace(strings.Trim(log, "\x00")); text != "" {
			errs = append(errs, CompilerError{Message: text})
		}
	}
	return errs
}

// Shift moves every located error by delta lines. Errors that land before
// line 1 lose their location.
func Shift(errs []CompilerError, delta int) []CompilerError {
	if delta == 0 {
		return errs
	}
	out := make([]CompilerError, len(errs))
	for i, e := range errs {
		out[i] = e
		if e.Line == 0 {
			continue
		}
		out[i].Line = max(e.Line+delta, 0)
		out[i].Message = rewriteLine(e.Message, out[i].Line)
	}
	return out
}

// rewriteLine replaces the line number embedded in a log message.
func rewriteLine(msg string, line int) string {
	if m := angleRE.FindStringSubmatchIndex(msg); m != nil {
		return msg[:m[4]] + strconv.Itoa(line) + msg[m[5]:]
	}
	if m := nvidiaRE.FindStringSubmatchIndex(msg); m != nil {
		return msg[:m[4]] + strconv.Itoa(line) + msg[m[5]:]
	}
	return msg
}

// LineMap describes a compiled source that equals the original with Count
// lines inserted after the first InsertAt original lines.
type LineMap struct {
	InsertAt int
	Count    int
}

// Original maps a 1-based compiled line to its original line. Lines inside
// the inserted block map to the line at the insertion point.
func (m LineMap) Original(compiled int) int {
	switch {
	case compiled <= m.InsertAt:
		return compiled
	case compiled <= m.InsertAt+m.Count:
		return max(m.InsertAt, 1)
	default:
		return compiled - m.Count
	}
}

func (m LineMap) String() string {
	return fmt.Sprintf("+%d@%d", m.Count, m.InsertAt)
}
