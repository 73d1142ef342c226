package utils

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeBaseURL lowercases and punycode-encodes the host, drops the
// fragment, query and any trailing slash so that paths can be appended with
// a plain string concatenation.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Hostname() == "" {
		return "", errors.New("missing host")
	}

	host := strings.ToLower(parsed.Hostname())
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}
	if port := parsed.Port(); port != "" {
		host = host + ":" + port
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.RawQuery = ""
	parsed.User = nil
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawPath = ""

	return parsed.String(), nil
}
