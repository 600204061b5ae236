package walker

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher matches directory entries against a comma-separated glob
// list. Fast paths cover the common shapes ("*" accepts every file,
// "*.ext" matches by extension, a trailing slash matches directories by
// name, a bare name matches files exactly); anything else is treated as
// a full glob and goes through doublestar.
type Matcher struct {
	patterns []pattern
}

type patternKind int

const (
	kindAll patternKind = iota
	kindExt
	kindDir
	kindLiteral
	kindGlob
)

type pattern struct {
	kind patternKind
	arg  string
}

// NewMatcher compiles a comma-separated glob list. An empty spec matches
// everything.
func NewMatcher(spec string) *Matcher {
	m := &Matcher{}
	if spec == "" {
		spec = "*"
	}
	for _, raw := range strings.Split(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		switch {
		case raw == "*":
			m.patterns = append(m.patterns, pattern{kind: kindAll})
		case strings.HasSuffix(raw, "/"):
			m.patterns = append(m.patterns, pattern{kind: kindDir, arg: strings.TrimSuffix(raw, "/")})
		case strings.HasPrefix(raw, "*.") && !strings.ContainsAny(raw[2:], "*?["):
			m.patterns = append(m.patterns, pattern{kind: kindExt, arg: raw[1:]}) // keep the dot
		case !strings.ContainsAny(raw, "*?["):
			m.patterns = append(m.patterns, pattern{kind: kindLiteral, arg: raw})
		default:
			m.patterns = append(m.patterns, pattern{kind: kindGlob, arg: raw})
		}
	}
	return m
}

// MatchFile reports whether a file basename matches.
func (m *Matcher) MatchFile(name string) bool {
	for _, p := range m.patterns {
		switch p.kind {
		case kindAll:
			return true
		case kindExt:
			if strings.HasSuffix(name, p.arg) {
				return true
			}
		case kindLiteral:
			if name == p.arg {
				return true
			}
		case kindGlob:
			if ok, _ := doublestar.Match(p.arg, name); ok {
				return true
			}
		}
	}
	return false
}

// MatchDir reports whether a directory basename matches a directory
// pattern (trailing slash), a literal name or a full glob; "*" and
// "*.ext" patterns never match directories. A directory match means
// the directory itself is the item; the walker does not descend into it.
func (m *Matcher) MatchDir(name string) bool {
	for _, p := range m.patterns {
		switch p.kind {
		case kindDir, kindLiteral:
			if name == p.arg {
				return true
			}
		case kindGlob:
			if ok, _ := doublestar.Match(p.arg, name); ok {
				return true
			}
		}
	}
	return false
}
