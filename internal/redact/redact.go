// Package redact masks credentials in strings before they are logged or
// shown to a console user: database URL passwords, password and token
// parameters, JWTs and bcrypt hashes.
package redact

import (
	"net/url"
	"regexp"
)

// Placeholders substituted for redacted values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedHashPlaceholder       = "[REDACTED_HASH]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Applied in order. JWTs go first so the token parameter rule does not
// leave part of one behind.
var rules = []rule{
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	{
		// user:password@ in connection URLs; the user name is kept.
		regexp.MustCompile(`(?i)((?:postgres|postgresql|mysql|sqlite|file)://[^:/@\s]+):[^@\s]+@`),
		"${1}:" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`\$2[abxy]?\$\d{2}\$[./A-Za-z0-9]{53}`),
		RedactedHashPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*['"]?)[^'"&\s]+`),
		"${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(access_token|token|jwt_secret|secret|api[_-]?key)(\s*[=:]\s*['"]?)[^'"&\s]+`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// URL returns raw with its userinfo password and access_token query
// parameter masked. Unparseable input falls back to String.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return String(raw)
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), RedactionPlaceholder)
		}
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", RedactionPlaceholder)
		u.RawQuery = q.Encode()
	}
	// Keep the placeholder readable instead of percent-encoded.
	out, _ := url.PathUnescape(u.String())
	return out
}
