package service

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
	maxPasswordLen = 72 // bytes; bcrypt rejects longer input
	minTitleLen    = 3
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n < minUsernameLen:
		return invalid("username must be at least 3 characters")
	case n > maxUsernameLen:
		return invalid("username must be at most 64 characters")
	case strings.ContainsAny(name, "@ \t\r\n"):
		return invalid("username must not contain '@' or whitespace")
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return invalid("email is not valid")
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return invalid("password must be at least 6 characters")
	}
	if len(pw) > maxPasswordLen {
		return invalid("password must be at most 72 bytes")
	}
	return nil
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) < minTitleLen {
		return invalid("title must be at least 3 characters")
	}
	return nil
}

func validateImage(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && !strings.HasPrefix(raw, "/")) {
		return invalid("image must be an http(s) URL or an absolute path")
	}
	return nil
}

// NormalizeTags trims, drops empties and de-duplicates tags while keeping
// their order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
