package spaserve

import (
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Ignore is a set of .gitignore lines for paths that shouldn't trigger a
// reload. Like in a .gitignore, ".git" covers the directory and everything
// below it, "dist/" only matches directories, a leading slash anchors to the
// watched directory and "!" re-includes a path.
type Ignore []string

// DefaultIgnore skips version control metadata, bytecode caches and editor
// swap files.
var DefaultIgnore = Ignore{
	".git",
	".hg",
	".svn",
	".bzr",
	"__pycache__",
	"*.pyc",
	"*.pyo",
	"*.swp",
	"*~",
}

// Match reports whether the relative file path is ignored.
func (ig Ignore) Match(rel string) bool {
	return ig.compile().match(rel, false)
}

// matcher is a compiled ignore set
type matcher struct {
	gi *gitignore.GitIgnore
}

func (ig Ignore) compile() *matcher {
	return &matcher{gitignore.CompileIgnoreLines(ig...)}
}

// match a path relative to the watched directory. Directories get a trailing
// slash so patterns like "node_modules/" apply to the directory itself.
func (m *matcher) match(rel string, dir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	if dir {
		rel += "/"
	}
	return m.gi.MatchesPath(rel)
}

// relative returns path relative to dir when it's absolute and inside dir, so
// directories above the watched root never count against the ignore set.
func relative(dir, p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(abs, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
