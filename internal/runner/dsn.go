package runner

import (
	"fmt"
	"net/url"
	"strings"
)

var allowedSchemes = map[string]struct{}{
	"postgres":            {},
	"postgresql":          {},
	"postgresql+psycopg":  {},
	"postgresql+psycopg2": {},
}

// NormalizeDSN validates a PostgreSQL URL and rewrites driver-suffixed
// schemes (postgresql+psycopg) to the plain form pgx accepts.
func NormalizeDSN(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("runner: empty DSN")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("runner: parse DSN: %w", err)
	}
	if _, ok := allowedSchemes[u.Scheme]; !ok {
		return "", fmt.Errorf("runner: unsupported DSN scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || strings.Trim(u.Path, "/") == "" {
		return "", fmt.Errorf("runner: DSN must include host and database name")
	}
	u.Scheme = "postgresql"
	return u.String(), nil
}

// DSNLabel renders host[:port]/dbname without credentials.
func DSNLabel(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return host + "/" + strings.TrimPrefix(u.Path, "/")
}
