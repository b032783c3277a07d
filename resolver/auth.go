package resolver

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"terarelay/internal"
)

// Cookie names the provider requires for an authenticated session.
var requiredCookies = []string{"ndus", "BDUSS", "STOKEN"}

var bdussPattern = regexp.MustCompile(`^[A-Za-z0-9_~-]+$`)

// ValidateCredential checks that an exported session carries the three
// required cookies and that none of them has already expired. It cannot
// verify the session server-side; an accepted credential can still turn
// out stale at request time.
func ValidateCredential(cred *internal.Credential) error {
	if cred == nil {
		return fmt.Errorf("no credential loaded")
	}
	var missing []string
	for _, name := range requiredCookies {
		if cred.Cookie(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("credential missing required cookies: %s", strings.Join(missing, ", "))
	}
	if len(cred.BDUSS) < 32 || !bdussPattern.MatchString(cred.BDUSS) {
		return fmt.Errorf("BDUSS cookie does not look like a session token")
	}

	now := time.Now()
	for _, c := range cred.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			return fmt.Errorf("cookie %s expired %s", c.Name, c.Expires.Format(time.RFC3339))
		}
	}
	return nil
}

// CookieHeader renders the whole exported cookie set as a request header
// value.
func CookieHeader(cred *internal.Credential) string {
	parts := make([]string, 0, len(cred.Cookies)+1)
	parts = append(parts, "lang=en")
	for _, c := range cred.Cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, ";")
}
