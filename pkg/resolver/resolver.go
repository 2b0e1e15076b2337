package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no file matches a request path after all
// fallback rules. Check with errors.Is.
var ErrNotFound = errors.New("file not found")

// staticExtensions are suffixes requested as files directly. Anything else
// is treated as a directory-style route and falls back to its index.html.
var staticExtensions = []string{
	".html", ".htm", ".css", ".js", ".jpg", ".jpeg", ".png", ".gif",
	".svg", ".webp", ".ico", ".pdf", ".txt",
}

// Resolver maps logical URL paths onto files below a fixed content root. It
// only locates bytes; it never rewrites them.
type Resolver struct {
	root string
}

// New resolves root to an absolute path and fails fast when it does not
// exist or is not a directory.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("error resolving content root '%s': %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("content root '%s': %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root '%s' is not a directory", abs)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the absolute content root path.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the on-disk file for a request path. Lookup order: the
// path itself, then "/" becomes "/index.html", then paths without a known
// static extension get "index.html" appended as a directory route. Paths
// escaping the content root are not found.
func (r *Resolver) Resolve(requestPath string) (string, error) {
	if p, ok := r.lookup(requestPath); ok {
		return p, nil
	}

	fallback := requestPath
	switch {
	case requestPath == "/":
		fallback = "/index.html"
	case !hasStaticExtension(requestPath):
		if strings.HasSuffix(requestPath, "/") {
			fallback = requestPath + "index.html"
		} else {
			fallback = requestPath + "/index.html"
		}
	}

	if p, ok := r.lookup(fallback); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, requestPath)
}

// lookup joins the path onto the content root, rejecting regular-file misses
// and anything that resolves outside the root.
func (r *Resolver) lookup(requestPath string) (string, bool) {
	p := filepath.Join(r.root, strings.TrimPrefix(requestPath, "/"))
	if p != r.root && !strings.HasPrefix(p, r.root+string(filepath.Separator)) {
		return "", false
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

func hasStaticExtension(p string) bool {
	for _, ext := range staticExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
