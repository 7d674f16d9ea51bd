// Package server normalizes and validates HTTP origins for WebSocket upgrades
// to enforce the configured allow-list.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

func normalizeOrigins(origins []string) ([]string, bool) {
	allowAll := false
	normalized := lo.FilterMap(origins, func(origin string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(origin)
		switch trimmed {
		case "":
			return "", false
		case "*":
			allowAll = true
			return "", false
		}

		n, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
		}
		return n, ok
	})
	return lo.Uniq(normalized), allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func isOriginAllowed(r *http.Request) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if allowAllOrigins {
		return true
	}

	normalizedOrigin, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}
	_, exists := allowedOrigins[normalizedOrigin]
	return exists
}

// originChecker builds the upgrader's CheckOrigin hook.
func originChecker(logger *slog.Logger) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if isOriginAllowed(r) {
			return true
		}
		logger.Warn("blocked websocket upgrade from disallowed origin", "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		return false
	}
}
