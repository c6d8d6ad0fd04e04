package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/tally-go/pkg/token"
)

// Keys whose values are secrets. A key containing "token" is treated apart:
// its value is fingerprinted so lines about one account can be correlated.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"credential",
	"dsn",
	"key",
}

const redactedValue = "***REDACTED***"

// fingerprintPrefix marks a value replaced by token.Fingerprint.
const fingerprintPrefix = "fp:"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		key := strings.ToLower(a.Key)
		if strings.Contains(key, "token") || LooksLikeToken(v) {
			return slog.String(a.Key, fingerprintPrefix+token.Fingerprint(v))
		}
		if IsSensitiveKey(key) {
			return slog.String(a.Key, redactedValue)
		}
		if strings.Contains(v, "/accounts/") {
			return slog.String(a.Key, RedactPath(v))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// LooksLikeToken reports whether v has the shape of an account token.
func LooksLikeToken(v string) bool {
	if len(v) != token.Length {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// RedactPath replaces the path segment after "/accounts/" with its
// fingerprint. Already redacted paths are returned unchanged.
func RedactPath(p string) string {
	const marker = "/accounts/"
	i := strings.Index(p, marker)
	if i < 0 {
		return p
	}
	start := i + len(marker)
	end := strings.IndexByte(p[start:], '/')
	if end < 0 {
		end = len(p)
	} else {
		end += start
	}
	if start == end || strings.HasPrefix(p[start:end], fingerprintPrefix) {
		return p
	}
	return p[:start] + fingerprintPrefix + token.Fingerprint(p[start:end]) + p[end:]
}

// IsSensitiveKey checks if a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
