package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest accepted password, in characters
const MinPasswordLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// ValidEmail checks the local@domain.tld shape
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizePhone strips everything except digits
func NormalizePhone(phone string) string {
	return nonDigit.ReplaceAllString(phone, "")
}

// ValidPhone requires at least ten digits after normalization
func ValidPhone(phone string) bool {
	return len(NormalizePhone(phone)) >= 10
}

// ValidPassword checks the minimum length
func ValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// FormatPhone applies the +7 (XXX) XXX-XX-XX mask to whatever digits
// have been typed so far. A leading 8 is treated as the trunk prefix
// and replaced by 7. Input without digits is returned unchanged.
func FormatPhone(input string) string {
	v := NormalizePhone(input)
	if v == "" {
		return input
	}
	if v[0] == '8' {
		v = "7" + v[1:]
	}

	var b strings.Builder
	b.WriteString("+7")
	switch n := len(v); {
	case n <= 1:
	case n <= 4:
		b.WriteString(" (" + v[1:])
	case n <= 7:
		b.WriteString(" (" + v[1:4] + ") " + v[4:])
	case n <= 9:
		b.WriteString(" (" + v[1:4] + ") " + v[4:7] + "-" + v[7:])
	default:
		end := n
		if end > 11 {
			end = 11
		}
		b.WriteString(" (" + v[1:4] + ") " + v[4:7] + "-" + v[7:9] + "-" + v[9:end])
	}
	return b.String()
}
