package rewriter

import (
	"fmt"
	"html"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rehost/pkg/logger"
)

var log = logger.GetLogger("rewriter")

// maxSafetyNetPasses bounds the raw-text fallback loop. Stripping can expose
// new occurrences (nested netlocs), but never indefinitely on sane content.
const maxSafetyNetPasses = 10

// attrTargets are the attributes rewritten by prefix-stripping during the
// structured HTML pass.
var attrTargets = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"script[src]", "src"},
	{"img[src]", "src"},
	{"link[href]", "href"},
	{"form[action]", "action"},
}

type urlPattern struct {
	re *regexp.Regexp
	// replace derives the replacement from the captured path tail
	replace func(tail string) string
}

func (p urlPattern) apply(content string) string {
	return p.re.ReplaceAllStringFunc(content, func(match string) string {
		tail := ""
		if groups := p.re.FindStringSubmatch(match); len(groups) > 1 {
			tail = groups[1]
		}
		return p.replace(tail)
	})
}

// DomainRewriter strips references to a single original domain from mirrored
// content, leaving relative paths behind. It is immutable after New and safe
// for concurrent use.
type DomainRewriter struct {
	// OriginalDomain is the configured domain normalized to an absolute
	// URL, e.g. "https://example.com".
	OriginalDomain string

	netloc      string
	contentRoot string
	patterns    []urlPattern
	netlocRe    *regexp.Regexp
}

// New builds a DomainRewriter from a domain (scheme optional, defaults to
// https) and a content root directory. The content root is resolved to an
// absolute path and must exist at startup; a missing or non-directory root
// is a configuration error, never deferred to request time.
func New(domain string, contentRoot string) (*DomainRewriter, error) {
	if domain == "" {
		return nil, fmt.Errorf("no domain configured")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}

	u, err := url.Parse(domain)
	if err != nil {
		return nil, fmt.Errorf("error parsing domain '%s': %w", domain, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("domain '%s' has no host", domain)
	}

	root, err := filepath.Abs(contentRoot)
	if err != nil {
		return nil, fmt.Errorf("error resolving content root '%s': %w", contentRoot, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("content root '%s': %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root '%s' is not a directory", root)
	}

	r := &DomainRewriter{
		OriginalDomain: domain,
		netloc:         u.Host,
		contentRoot:    root,
	}
	r.compilePatterns()
	return r, nil
}

// Netloc returns the host[:port] portion of the original domain.
func (r *DomainRewriter) Netloc() string {
	return r.netloc
}

// ContentRoot returns the absolute path of the served directory tree.
func (r *DomainRewriter) ContentRoot() string {
	return r.contentRoot
}

func (r *DomainRewriter) compilePatterns() {
	host := regexp.QuoteMeta(r.netloc)

	// The quoted patterns consume the closing quote so the replacement
	// keeps quoting balanced: url("//host/x") becomes url("/x").
	full := regexp.MustCompile(`(?i)https?://` + host + `(/[^"'\s]*)?`)
	doubleQuoted := regexp.MustCompile(`(?i)"//.*?` + host + `(/[^"'\s]*)?"`)
	singleQuoted := regexp.MustCompile(`(?i)'//.*?` + host + `(/[^"'\s]*)?'`)

	r.patterns = []urlPattern{
		{full, func(tail string) string { return tail }},
		{doubleQuoted, func(tail string) string { return `"` + tail + `"` }},
		{singleQuoted, func(tail string) string { return `'` + tail + `'` }},
	}

	r.netlocRe = regexp.MustCompile(`(?i)(https?://)?` + host)
}

// RewriteHTML rewrites URLs in an HTML document. It runs two clearly
// separated passes: a structured pass over the parse tree, then a raw-text
// safety net over the serialized output for occurrences the tree pass cannot
// reach (text nodes, comments, script bodies).
//
// requestBaseURL is the absolute base of the serving origin, injected as a
// <base> tag when the document has none, so remaining relative paths resolve
// against the mirror instead of the original site.
//
// Any parse or serialize failure returns the input unmodified: serving
// unrewritten content beats failing the request.
func (r *DomainRewriter) RewriteHTML(content string, requestBaseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		log.Warn().Err(err).Msg("could not parse HTML, serving content unmodified")
		return content
	}

	for _, target := range attrTargets {
		attr := target.attr
		doc.Find(target.selector).Each(func(_ int, s *goquery.Selection) {
			value, _ := s.Attr(attr)
			s.SetAttr(attr, r.stripPrefix(value))
		})
	}

	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			return
		}
		if value, ok := s.Attr("content"); ok {
			s.SetAttr("content", r.stripAll(value))
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr("style")
		s.SetAttr("style", r.stripAll(value))
	})

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range s.Nodes[0].Attr {
			if strings.HasPrefix(attr.Key, "data-") && r.containsDomain(attr.Val) {
				s.SetAttr(attr.Key, r.stripAll(attr.Val))
			}
		}
	})

	// ensure relative paths resolve against the mirror
	if doc.Find("base").Length() == 0 {
		doc.Find("head").First().PrependHtml(`<base href="` + html.EscapeString(requestBaseURL) + `"/>`)
	}

	out, err := doc.Html()
	if err != nil {
		log.Warn().Err(err).Msg("could not render HTML, serving content unmodified")
		return content
	}

	return r.safetyNet(out)
}

// RewriteCSS rewrites URLs in CSS content.
func (r *DomainRewriter) RewriteCSS(content string) string {
	return r.applyPatterns(content)
}

// RewriteJS rewrites URLs in JavaScript content.
func (r *DomainRewriter) RewriteJS(content string) string {
	return r.applyPatterns(content)
}

// applyPatterns runs the three regex passes, in order, over raw text:
// full URL, then double-quoted protocol-relative, then single-quoted.
func (r *DomainRewriter) applyPatterns(content string) string {
	for _, p := range r.patterns {
		content = p.apply(content)
	}
	return content
}

// stripPrefix removes the original domain (full or protocol-relative form)
// from the front of an attribute value.
func (r *DomainRewriter) stripPrefix(value string) string {
	if strings.HasPrefix(value, r.OriginalDomain) {
		return strings.TrimPrefix(value, r.OriginalDomain)
	}
	if strings.HasPrefix(value, "//"+r.netloc) {
		return strings.TrimPrefix(value, "//"+r.netloc)
	}
	return value
}

// stripAll removes every occurrence of both domain forms from a value.
func (r *DomainRewriter) stripAll(value string) string {
	value = strings.ReplaceAll(value, r.OriginalDomain, "")
	return strings.ReplaceAll(value, "//"+r.netloc, "")
}

func (r *DomainRewriter) containsDomain(value string) bool {
	return strings.Contains(value, r.OriginalDomain) || strings.Contains(value, "//"+r.netloc)
}

// safetyNet strips netloc occurrences the structured pass missed. Bounded:
// on non-convergence it warns and emits what it has rather than spinning on
// adversarial content.
func (r *DomainRewriter) safetyNet(content string) string {
	needle := strings.ToLower(r.netloc)
	for i := 0; strings.Contains(strings.ToLower(content), needle); i++ {
		if i >= maxSafetyNetPasses {
			log.Warn().
				Str("netloc", r.netloc).
				Int("passes", maxSafetyNetPasses).
				Msg("safety net did not converge, serving partially rewritten content")
			break
		}
		content = r.netlocRe.ReplaceAllString(content, "")
	}
	return content
}
