package internal

import (
	"net/http"
	"net/url"
	"time"
)

// ShareLink is a validated Terabox share URL reduced to the pieces the
// resolver strategies care about.
type ShareLink struct {
	Raw    string
	Domain string
	Surl   string
}

// ShortURL returns the surl in the "shorturl" form the provider's
// shorturlinfo API expects (a literal "1" prefix).
func (l ShareLink) ShortURL() string {
	return "1" + l.Surl
}

// PageURL returns the mobile share page for the link. The stream strategy
// fetches this page to intercept the embedded authorization token.
func (l ShareLink) PageURL() string {
	return "https://www.terabox.app/wap/share/filelist?surl=" + url.QueryEscape(l.Surl)
}

// Credential is an exported browser session: an opaque set of cookies of
// which three names carry meaning for the provider.
type Credential struct {
	Cookies []*http.Cookie

	// Extracted from Cookies at load time.
	Ndus   string // user-session identifier
	BDUSS  string // primary auth token
	STOKEN string // session token
}

// Cookie returns the value of a named cookie, or "" when absent.
func (c *Credential) Cookie(name string) string {
	for _, ck := range c.Cookies {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// ProxyConfig describes an optional forward proxy for all provider traffic.
// Immutable after load.
type ProxyConfig struct {
	Scheme   string // "http" or "socks5"
	Host     string // host:port
	Username string
	Password string
}

// URL reassembles the proxy as a url.URL, including credentials.
func (p *ProxyConfig) URL() *url.URL {
	u := &url.URL{Scheme: p.Scheme, Host: p.Host}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// ResolvedDownload is the outcome of a successful strategy attempt.
// Transient: never persisted.
type ResolvedDownload struct {
	DirectURL  string
	Filename   string
	Size       int64
	StreamURL  string // in-page player URL when the strategy observed one
	Strategy   string // name of the strategy that produced the result
	ResolvedAt time.Time
}

// Attempt records one strategy's outcome for operator diagnosis.
type Attempt struct {
	Strategy string
	Err      error
	Elapsed  time.Duration
}
