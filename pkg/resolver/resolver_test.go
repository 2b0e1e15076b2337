package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()

	dir := t.TempDir()
	root := filepath.Join(dir, "site")
	writeFile(t, filepath.Join(root, "index.html"), "<html>home</html>")
	writeFile(t, filepath.Join(root, "blog", "index.html"), "<html>blog</html>")
	writeFile(t, filepath.Join(root, "style.css"), "body {}")
	// a sibling outside the content root
	writeFile(t, filepath.Join(dir, "secret.txt"), "secret")

	r, err := New(root)
	require.NoError(t, err)
	return r, root
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New("/does/not/exist")
	assert.Error(t, err)
}

func TestNewRejectsFileRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	writeFile(t, file, "x")

	_, err := New(file)
	assert.Error(t, err)
}

func TestResolveRootPath(t *testing.T) {
	r, root := newTestResolver(t)

	p, err := r.Resolve("/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "index.html"), p)
}

func TestResolveDirectFile(t *testing.T) {
	r, root := newTestResolver(t)

	p, err := r.Resolve("/style.css")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "style.css"), p)
}

func TestResolveDirectoryRoutes(t *testing.T) {
	r, root := newTestResolver(t)

	for _, reqPath := range []string{"/blog", "/blog/"} {
		p, err := r.Resolve(reqPath)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "blog", "index.html"), p)
	}
}

func TestResolveNotFound(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve("/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "/missing")
}

func TestResolveMissingStaticFileSkipsIndexFallback(t *testing.T) {
	r, _ := newTestResolver(t)

	// a known static extension is never treated as a directory route
	_, err := r.Resolve("/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRejectsTraversal(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve("/../secret.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
