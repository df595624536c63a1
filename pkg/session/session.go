package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"dibbsget/pkg/config"
	"dibbsget/pkg/logger"
)

// Session is a reconstructed HTTP session: a pre-populated cookie jar plus
// the static headers attached to every request. It is read-only for the
// duration of a run.
type Session struct {
	Jar     http.CookieJar
	Headers map[string]string
}

// Build reconstructs a session from a storage-state snapshot and the
// configured static headers. No network calls are made.
func Build(state *StorageState, httpCfg config.HTTPConfig, log logger.Logger) (*Session, error) {
	jar, err := buildJar(state)
	if err != nil {
		return nil, err
	}

	log.InfoWithFields("session rebuilt from snapshot", map[string]interface{}{
		"cookies": len(state.Cookies),
		"origins": len(state.Origins),
	})

	headers := map[string]string{
		"User-Agent": httpCfg.UserAgent,
		"Accept":     "*/*",
		"Connection": "keep-alive",
	}
	if httpCfg.Referer != "" {
		headers["Referer"] = httpCfg.Referer
	}

	return &Session{Jar: jar, Headers: headers}, nil
}

// buildJar converts the snapshot's cookie records into a cookie jar,
// entry by entry.
func buildJar(state *StorageState) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	for _, c := range state.Cookies {
		u, err := cookieURL(c)
		if err != nil {
			return nil, err
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     cookiePath(c),
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
			SameSite: parseSameSite(c.SameSite),
		}
		// A leading dot marks a domain cookie; anything else registers as
		// a host-only cookie for the record's domain.
		if strings.HasPrefix(c.Domain, ".") {
			cookie.Domain = strings.TrimPrefix(c.Domain, ".")
		}
		jar.SetCookies(u, []*http.Cookie{cookie})
	}

	return jar, nil
}

// cookieURL derives the URL a cookie record is registered under. The jar
// keys cookies by URL, so each record needs a synthetic one matching its
// domain and path.
func cookieURL(c Cookie) (*url.URL, error) {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	host := strings.TrimPrefix(c.Domain, ".")
	if host == "" {
		return nil, fmt.Errorf("cookie %q has no domain", c.Name)
	}
	return url.Parse(fmt.Sprintf("%s://%s%s", scheme, host, cookiePath(c)))
}

func cookiePath(c Cookie) string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// parseSameSite maps the snapshot's SameSite policy strings onto the
// net/http values. Unknown strings map to the default mode.
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
