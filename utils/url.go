package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"terarelay/internal"
)

// ShareLinkValidator rejects anything that is not a provider share URL
// before a single byte goes out on the network.
type ShareLinkValidator struct {
	allowedDomains map[string]bool
	pathPattern    *regexp.Regexp
}

// The provider operates a pile of mirror domains; links from any of them
// carry the same surl.
var shareDomains = []string{
	"terabox.com",
	"terabox.app",
	"terabox.fun",
	"teraboxapp.com",
	"1024terabox.com",
	"1024tera.com",
	"mirrobox.com",
	"nephobox.com",
	"freeterabox.com",
	"4funbox.com",
	"4funbox.co",
	"tibibox.com",
	"momerybox.com",
}

// ShareDomains returns the known mirror domains, for help text and
// message filters.
func ShareDomains() []string {
	out := make([]string, len(shareDomains))
	copy(out, shareDomains)
	return out
}

// NewShareLinkValidator creates a validator covering the known mirror
// domains and share-URL shapes.
func NewShareLinkValidator() *ShareLinkValidator {
	allowed := make(map[string]bool, len(shareDomains)*2)
	for _, d := range shareDomains {
		allowed[d] = true
		allowed["www."+d] = true
	}
	return &ShareLinkValidator{
		allowedDomains: allowed,
		// Path form: /s/1AbC123. The leading "1" is the shorturl prefix,
		// not part of the surl.
		pathPattern: regexp.MustCompile(`^/s/1?([A-Za-z0-9_-]+)$`),
	}
}

// Normalize validates a raw URL and extracts the share token. Any failure
// is a hard InvalidLink: the fallback chain never runs for malformed input.
func (v *ShareLinkValidator) Normalize(raw string) (internal.ShareLink, error) {
	var link internal.ShareLink

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return link, internal.NewInvalidLinkError(raw, "empty URL")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return link, internal.NewInvalidLinkError(raw, fmt.Sprintf("unparseable URL: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return link, internal.NewInvalidLinkError(raw, "URL must use http or https")
	}

	host := strings.ToLower(parsed.Hostname())
	if !v.allowedDomain(host) {
		return link, internal.NewInvalidLinkError(raw, fmt.Sprintf("domain %q is not a known share host", host))
	}

	surl := v.extractSurl(parsed)
	if surl == "" {
		return link, internal.NewInvalidLinkError(raw, "no share token (surl) in URL")
	}

	link.Raw = raw
	link.Domain = host
	link.Surl = surl
	return link, nil
}

func (v *ShareLinkValidator) allowedDomain(host string) bool {
	if v.allowedDomains[host] {
		return true
	}
	// Regional subdomains (dm., jp., us., ...) of the known apex domains.
	for _, d := range shareDomains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// extractSurl pulls the share token from either the query string
// (sharing/link?surl=, wap/share/filelist?surl=) or the /s/ path form.
func (v *ShareLinkValidator) extractSurl(parsed *url.URL) string {
	if surl := parsed.Query().Get("surl"); surl != "" {
		return surl
	}
	if m := v.pathPattern.FindStringSubmatch(parsed.Path); len(m) > 1 {
		return m[1]
	}
	return ""
}
