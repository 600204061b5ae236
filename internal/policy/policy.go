package policy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Policy holds the static, OS-specific path rules that must hold
// regardless of any scorer signal. The zero value is not usable; build
// one with New.
type Policy struct {
	criticalPrefixes []string
	sensitiveGlobs   []string
}

// systemCriticalRoots are critical on every installation.
var systemCriticalRoots = []string{
	"/System",
	"/usr",
	"/bin",
	"/sbin",
	"/etc",
	"/var",
	"/Library/Keychains",
}

// homeCriticalSubdirs are critical relative to the user's home.
var homeCriticalSubdirs = []string{
	".ssh",
	".gnupg",
	".aws",
	".password-store",
	"Library/Keychains",
	"Library/Application Support/1Password",
	"Library/Application Support/1Password 7",
	"Library/Application Support/Bitwarden",
	"Library/Application Support/KeePassXC",
}

// sensitiveGlobs match basenames that indicate user secrets.
var sensitiveGlobs = []string{
	"*.key", "*.pem", "*.crt", "*.pfx", "*.p12",
	"*_rsa", "*_dsa", "*_ecdsa", "*_ed25519",
	"*.kdbx", "*.keychain", "*.keystore",
	"id_*", "*.vault", "*.credentials", "*.secret",
}

// New builds a Policy for the given home directory. An empty home
// disables the home-relative rules (the system rules always apply).
func New(home string) *Policy {
	p := &Policy{
		criticalPrefixes: append([]string(nil), systemCriticalRoots...),
		sensitiveGlobs:   sensitiveGlobs,
	}
	if home != "" {
		home = filepath.Clean(home)
		for _, sub := range homeCriticalSubdirs {
			p.criticalPrefixes = append(p.criticalPrefixes, filepath.Join(home, sub))
		}
	}
	return p
}

// Default builds a Policy for the current user.
func Default() *Policy {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve home dir, home-relative critical rules disabled")
		home = ""
	}
	return New(home)
}

// IsCritical reports whether path is a descendant of (or equal to) any
// critical prefix. Matching is prefix-based on canonicalized paths; a
// path that cannot be canonicalized is treated as critical.
func (p *Policy) IsCritical(path string) bool {
	canon, err := canonicalize(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("canonicalize failed, treating as critical")
		return true
	}
	for _, prefix := range p.criticalPrefixes {
		if isDescendant(prefix, canon) {
			return true
		}
	}
	return false
}

// IsSensitive reports whether the basename matches any sensitive glob.
func (p *Policy) IsSensitive(name string) bool {
	base := filepath.Base(name)
	for _, g := range p.sensitiveGlobs {
		ok, err := filepath.Match(g, base)
		if err != nil {
			return true
		}
		if ok {
			return true
		}
	}
	return false
}

// canonicalize returns an absolute, cleaned path with the parent chain
// resolved. The leaf is deliberately left unresolved: a symlink is
// judged by where it lives, and its target is the auditor's separate
// concern. Resolving the parents keeps a symlinked ancestor from
// smuggling a path out of a critical tree; a parent that cannot be
// resolved (already deleted, permission) falls back to the cleaned
// absolute path.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	dir, base := filepath.Split(abs)
	if resolvedDir, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
		return filepath.Join(resolvedDir, base), nil
	}
	return abs, nil
}

// isDescendant reports whether path is prefix or lives under it.
func isDescendant(prefix, path string) bool {
	if path == prefix {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return strings.HasPrefix(path[len(prefix):], string(os.PathSeparator))
}
