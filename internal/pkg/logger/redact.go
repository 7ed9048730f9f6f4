package logger

import (
	"net/url"
	"strings"
)

var secretKeys = []string{"token", "secret", "password", "passwd", "api_key", "apikey", "access_key", "credential"}

const masked = "***"

func redactValue(key, val string) string {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return masked
		}
	}
	if strings.Contains(val, "://") && strings.Contains(val, "@") {
		return RedactURL(val)
	}
	return val
}

// RedactURL masks the password of a connection URL.
// "postgres://app:hunter2@db:5432/hub" → "postgres://app:***@db:5432/hub"
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), masked)
	return strings.Replace(u.String(), url.QueryEscape(masked), masked, 1)
}
