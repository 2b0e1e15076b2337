package handlers

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehost/pkg/resolver"
	"rehost/pkg/rewriter"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3, 4}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), []byte(
		`<!DOCTYPE html><html><head><title>home</title></head><body>`+
			`<a href="https://oldsite.com/about">About</a>`+
			`<img src="//oldsite.com/logo.png"/>`+
			`</body></html>`))
	writeFile(t, filepath.Join(root, "blog", "index.html"), []byte(
		`<html><head></head><body>blog</body></html>`))
	writeFile(t, filepath.Join(root, "style.css"), []byte(
		`body { background: url("//oldsite.com/bg.png"); }`))
	writeFile(t, filepath.Join(root, "app.js"), []byte(
		`var api = "https://oldsite.com/api";`))
	writeFile(t, filepath.Join(root, "logo.png"), pngBytes)
	// extensionless HTML document, found only by doctype sniffing
	writeFile(t, filepath.Join(root, "download"), []byte(
		`<!DOCTYPE html><html><head></head><body><a href="https://oldsite.com/file">f</a></body></html>`))

	rw, err := rewriter.New("oldsite.com", root)
	require.NoError(t, err)
	res, err := resolver.New(root)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/*", ServeSite(rw, res))
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, string, []byte) {
	t.Helper()

	req := httptest.NewRequest("GET", "http://mirror.local"+path, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get(fiber.HeaderContentType), body
}

func TestServeHTMLRewritten(t *testing.T) {
	app := newTestApp(t)

	status, contentType, body := get(t, app, "/")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "text/html", contentType)

	html := string(body)
	assert.Contains(t, html, `href="/about"`)
	assert.Contains(t, html, `src="/logo.png"`)
	assert.Contains(t, html, `<base href="http://mirror.local/"/>`)
	assert.NotContains(t, html, "oldsite.com")
}

func TestServeDirectoryRoute(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/blog", "/blog/"} {
		status, contentType, body := get(t, app, path)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "text/html", contentType)
		assert.Contains(t, string(body), "blog")
	}
}

func TestServeCSSRewritten(t *testing.T) {
	app := newTestApp(t)

	status, contentType, body := get(t, app, "/style.css")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "text/css", contentType)
	assert.Equal(t, `body { background: url("/bg.png"); }`, string(body))
}

func TestServeJSRewritten(t *testing.T) {
	app := newTestApp(t)

	status, contentType, body := get(t, app, "/app.js")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "application/javascript", contentType)
	assert.Equal(t, `var api = "/api";`, string(body))
}

func TestServeBinaryPassThrough(t *testing.T) {
	app := newTestApp(t)

	status, _, body := get(t, app, "/logo.png")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, pngBytes, body)
}

func TestServeSniffsExtensionlessHTML(t *testing.T) {
	app := newTestApp(t)

	status, contentType, body := get(t, app, "/download")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "text/html", contentType)
	assert.Contains(t, string(body), `href="/file"`)
}

func TestServeNotFound(t *testing.T) {
	app := newTestApp(t)

	status, _, body := get(t, app, "/missing")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "File not found: /missing", string(body))
}
