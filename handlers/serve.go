package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"rehost/pkg/logger"
	"rehost/pkg/metrics"
	"rehost/pkg/resolver"
	"rehost/pkg/rewriter"
)

var log = logger.GetLogger("handlers")

// ServeSite returns a catch-all Fiber handler serving the mirrored site.
// Each request is resolved to a file, dispatched on its suffix and either
// rewritten (HTML/CSS/JS) or sent byte for byte.
func ServeSite(rw *rewriter.DomainRewriter, res *resolver.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqPath := c.Path()

		lookupPath := reqPath
		if query := string(c.Request().URI().QueryString()); query != "" {
			lookupPath += "?" + query
		}

		filePath, err := res.Resolve(lookupPath)
		if err != nil {
			if !errors.Is(err, resolver.ErrNotFound) {
				log.Error().Err(err).Str("path", lookupPath).Msg("resolver failed")
			}
			metrics.ObserveRequest(fiber.StatusNotFound, "none")
			return c.Status(fiber.StatusNotFound).SendString("File not found: " + lookupPath)
		}

		// dispatch on the request suffix, falling back to the resolved
		// file's own suffix, then to doctype sniffing
		suffix := filepath.Ext(reqPath)
		if suffix == "" {
			suffix = filepath.Ext(filePath)
		}
		if suffix == "" && sniffHTML(filePath) {
			suffix = ".html"
		}

		switch suffix {
		case ".html", ".htm":
			return sendRewritten(c, filePath, "text/html", func(content string) string {
				return rw.RewriteHTML(content, baseURL(c))
			})
		case ".css":
			return sendRewritten(c, filePath, "text/css", rw.RewriteCSS)
		case ".js":
			return sendRewritten(c, filePath, "application/javascript", rw.RewriteJS)
		}

		// everything else is served unmodified
		metrics.ObserveRequest(fiber.StatusOK, "raw")
		return c.SendFile(filePath)
	}
}

func sendRewritten(c *fiber.Ctx, filePath string, contentType string, rewrite func(string) string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		// exists-then-unreadable is either permissions or a racing
		// delete; retrying static content has no expected benefit
		log.Error().Err(err).Str("path", filePath).Msg("could not read file")
		metrics.ObserveRequest(fiber.StatusInternalServerError, contentType)
		return c.Status(fiber.StatusInternalServerError).SendString("Error reading file")
	}

	start := time.Now()
	body := rewrite(string(content))
	metrics.ObserveRewrite(contentType, time.Since(start))
	metrics.ObserveRequest(fiber.StatusOK, contentType)

	c.Set(fiber.HeaderContentType, contentType)
	return c.SendString(body)
}

// baseURL is the absolute base of the current request with a trailing slash,
// used for the injected <base> tag.
func baseURL(c *fiber.Ctx) string {
	base := c.BaseURL()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// sniffHTML reports whether the file opens with an HTML doctype. Only
// consulted when neither the request path nor the resolved file carries an
// extension.
func sniffHTML(filePath string) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 100)
	n, _ := f.Read(buf)
	head := strings.TrimLeft(string(buf[:n]), " \t\r\n")
	return strings.HasPrefix(head, "<!DOCTYPE html>")
}
