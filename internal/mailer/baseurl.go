package mailer

import (
	"net/url"
	"strings"
)

// DefaultStoreURL is the last-resort domain for links in composed messages
// when neither an explicit override nor a deployment-provided URL is usable.
const DefaultStoreURL = "https://store.example.com"

// ResolveBaseURL returns the first candidate that parses as an http(s)
// origin, falling back to the given default. Candidates without a scheme
// (some platforms expose the bare host) are retried with https prepended.
func ResolveBaseURL(candidates []string, fallback string) string {
	for _, candidate := range candidates {
		if origin, ok := validOrigin(candidate); ok {
			return origin
		}
	}
	if origin, ok := validOrigin(fallback); ok {
		return origin
	}
	return DefaultStoreURL
}

func validOrigin(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	return u.Scheme + "://" + u.Host, true
}
