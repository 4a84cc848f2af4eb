package registry

import (
	"net"
	"net/url"
	"strings"
)

const (
	// Relay status APIs polled while a transfer is in flight.
	LiFiStatusURL     = "https://li.quest/v1/status"
	WormholeStatusURL = "https://api.wormholescan.io/api/v1/operations"

	// Default OpenAI-compatible endpoint used by the remote interpreter.
	DefaultLLMEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultLLMModel    = "gpt-4o-mini"
)

// StatusEndpoint returns the canonical status endpoint of a relay provider.
func StatusEndpoint(provider string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "lifi":
		return LiFiStatusURL, true
	case "wormhole":
		return WormholeStatusURL, true
	default:
		return "", false
	}
}

// IsAllowedStatusEndpoint accepts the provider's canonical endpoint, or any
// loopback http(s) URL for local relayers and tests.
func IsAllowedStatusEndpoint(provider, endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Hostname()) == "" {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if isLoopbackHost(parsed.Hostname()) {
		return scheme == "http" || scheme == "https"
	}
	if scheme != "https" {
		return false
	}
	canonical, ok := StatusEndpoint(provider)
	if !ok {
		return false
	}
	allowed, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), allowed.Hostname()) &&
		effectivePort(parsed) == effectivePort(allowed) &&
		trimPath(parsed.Path) == trimPath(allowed.Path)
}

func isLoopbackHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if strings.EqualFold(u.Scheme, "http") {
		return "80"
	}
	return "443"
}

func trimPath(p string) string {
	p = strings.TrimSuffix(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return p
}
