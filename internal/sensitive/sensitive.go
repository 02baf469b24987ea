// Package sensitive flags text that looks like a payment card number, a
// social security number or a phone number. Detection is deliberately
// conservative: a false positive only means an item is not recorded.
package sensitive

import "regexp"

var (
	digitRunRe = regexp.MustCompile(`\d(?:[ \-]?\d)*`)
	ssnRe      = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`)
	phoneRe    = regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b|\(\d{3}\)\s*\d{3}-\d{4}`)
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// IsSensitive reports whether content contains any sensitive token.
func IsSensitive(content string) bool {
	return HasCardNumber(content) || HasSSN(content) || HasPhone(content)
}

// HasCardNumber reports whether content holds a run of 13 to 19 digits,
// optionally separated by single spaces or dashes, that passes Luhn.
func HasCardNumber(content string) bool {
	for _, run := range digitRunRe.FindAllString(content, -1) {
		digits := make([]byte, 0, len(run))
		for i := 0; i < len(run); i++ {
			if c := run[i]; c >= '0' && c <= '9' {
				digits = append(digits, c)
			}
		}
		if len(digits) < minCardDigits || len(digits) > maxCardDigits {
			continue
		}
		if Luhn(string(digits)) {
			return true
		}
	}
	return false
}

// HasSSN matches ddd-dd-dddd or a standalone nine digit number.
func HasSSN(content string) bool {
	return ssnRe.MatchString(content)
}

// HasPhone matches ddd-ddd-dddd and (ddd) ddd-dddd.
func HasPhone(content string) bool {
	return phoneRe.MatchString(content)
}

// Luhn validates the mod-10 checksum of an all-digit string.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}
