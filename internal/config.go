package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Canonical strategy names, in the documented default priority order.
const (
	StrategyStream   = "stream"
	StrategyExternal = "external"
	StrategySession  = "session"
)

// DefaultStrategyOrder returns the documented fallback priority.
func DefaultStrategyOrder() []string {
	return []string{StrategyStream, StrategyExternal, StrategySession}
}

// DefaultResolverAPIs are the third-party resolver services probed by the
// external strategy when none are configured.
func DefaultResolverAPIs() []string {
	return []string{"https://info.fallenapi.fun/tera"}
}

const DefaultStrategyTimeout = 20 * time.Second

// Settings is the process-wide configuration, loaded once at startup and
// read-only afterwards. It is passed by reference into the resolution
// chain, never consulted as ambient state.
type Settings struct {
	BotToken string
	AppID    int32
	AppHash  string

	Credential *Credential // nil: session strategy disabled
	Proxy      *ProxyConfig

	StrategyOrder   []string
	StrategyTimeout time.Duration
	ResolverAPIs    []string
	CacheDir        string

	LogLevel string
	Debug    bool
	Quiet    bool
	LogFile  string

	// Warnings collected during load, emitted once the logger is up.
	// Cookies and proxy are optional enhancements: a bad value degrades
	// the feature instead of failing startup.
	Warnings []string
}

func (s *Settings) warnf(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// LoadSettings reads the whole configuration from the environment.
func LoadSettings() *Settings {
	s := &Settings{
		BotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		AppHash:         os.Getenv("API_HASH"),
		StrategyOrder:   DefaultStrategyOrder(),
		StrategyTimeout: DefaultStrategyTimeout,
		ResolverAPIs:    DefaultResolverAPIs(),
		CacheDir:        "cache",
		LogLevel:        "info",
	}

	if raw := os.Getenv("API_ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 32); err == nil {
			s.AppID = int32(id)
		} else {
			s.warnf("API_ID is not a usable numeric id: %q", raw)
		}
	}

	if raw := os.Getenv("TERABOX_COOKIES"); raw != "" {
		cred, err := ParseCookieJSON([]byte(raw))
		if err != nil {
			s.warnf("TERABOX_COOKIES unusable, cookie authentication disabled: %v", err)
		} else {
			s.Credential = cred
		}
	}

	if raw := os.Getenv("PROXY_URL"); raw != "" {
		proxy, err := ParseProxyURL(raw)
		if err != nil {
			s.warnf("PROXY_URL unusable, proceeding without proxy: %v", err)
		} else {
			s.Proxy = proxy
		}
	}

	if raw := os.Getenv("STRATEGY_ORDER"); raw != "" {
		order, err := ParseStrategyOrder(raw)
		if err != nil {
			s.warnf("STRATEGY_ORDER unusable, keeping default order: %v", err)
		} else {
			s.StrategyOrder = order
		}
	}

	if raw := os.Getenv("TERARELAY_TIMEOUT"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			s.StrategyTimeout = time.Duration(secs) * time.Second
		}
	}

	if raw := os.Getenv("TERARELAY_RESOLVER_APIS"); raw != "" {
		var apis []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				apis = append(apis, part)
			}
		}
		if len(apis) > 0 {
			s.ResolverAPIs = apis
		}
	}

	if dir := os.Getenv("TERARELAY_CACHE_DIR"); dir != "" {
		s.CacheDir = dir
	}

	if level := os.Getenv("TERARELAY_LOG_LEVEL"); level != "" {
		s.LogLevel = level
	}
	s.Debug = envBool("TERARELAY_DEBUG")
	s.Quiet = envBool("TERARELAY_QUIET")
	s.LogFile = os.Getenv("TERARELAY_LOG_FILE")

	return s
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || strings.EqualFold(v, "true")
}

// exportedCookie is one element of the browser-extension export format.
type exportedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
	Secure bool   `json:"secure"`
	// Extension exports carry expirationDate as fractional epoch seconds.
	ExpirationDate float64 `json:"expirationDate"`
}

// ParseCookieJSON parses a browser cookie export: a JSON array of objects
// with at least name and value. Unknown fields pass through untouched on
// the resulting http.Cookie set.
func ParseCookieJSON(data []byte) (*Credential, error) {
	var exported []exportedCookie
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("not a JSON cookie array: %w", err)
	}
	if len(exported) == 0 {
		return nil, fmt.Errorf("cookie array is empty")
	}

	cred := &Credential{}
	for _, ec := range exported {
		if ec.Name == "" {
			return nil, fmt.Errorf("cookie entry without a name")
		}
		cookie := &http.Cookie{
			Name:   ec.Name,
			Value:  ec.Value,
			Domain: ec.Domain,
			Path:   ec.Path,
			Secure: ec.Secure,
		}
		if ec.ExpirationDate > 0 {
			cookie.Expires = time.Unix(int64(ec.ExpirationDate), 0)
		}
		cred.Cookies = append(cred.Cookies, cookie)

		switch ec.Name {
		case "ndus":
			cred.Ndus = ec.Value
		case "BDUSS":
			cred.BDUSS = ec.Value
		case "STOKEN":
			cred.STOKEN = ec.Value
		}
	}
	return cred, nil
}

// ParseProxyURL parses PROXY_URL. Only http and socks5 schemes are
// accepted; credentials may be embedded as user:pass@.
func ParseProxyURL(raw string) (*ProxyConfig, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (use http or socks5)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("proxy URL has no host")
	}
	cfg := &ProxyConfig{Scheme: parsed.Scheme, Host: parsed.Host}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// ParseStrategyOrder validates a comma-separated strategy list. Every name
// must be known and appear at most once.
func ParseStrategyOrder(raw string) ([]string, error) {
	known := map[string]bool{
		StrategyStream:   false,
		StrategyExternal: false,
		StrategySession:  false,
	}
	var order []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		seen, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		if seen {
			return nil, fmt.Errorf("strategy %q listed twice", name)
		}
		known[name] = true
		order = append(order, name)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no strategies listed")
	}
	return order, nil
}
