package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

func parseBaseURL(s string) (*url.URL, error) {
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", s)
	}
	return u, nil
}
