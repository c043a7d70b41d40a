// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	defaultRegion     = "IT"
	countryCodeLength = 2
	minPrettyLength   = 4
)

var prettyGroupSizes = []int{3, 3, 4}

// Digits strips every non-digit character. It is idempotent and maps the
// empty string to itself.
func Digits(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Pretty renders digits as "+CC GGG GGG GGGG", treating the first two digits
// as the country code. Inputs shorter than four digits are returned as-is.
// Cosmetic only; no validation is performed.
func Pretty(digits string) string {
	digits = Digits(digits)
	if len(digits) < minPrettyLength {
		return digits
	}

	countryCode := digits[:countryCodeLength]
	rest := digits[countryCodeLength:]

	groups := make([]string, 0, len(prettyGroupSizes)+1)
	offset := 0
	for _, size := range prettyGroupSizes {
		if offset >= len(rest) {
			break
		}
		end := min(offset+size, len(rest))
		groups = append(groups, rest[offset:end])
		offset = end
	}
	if offset < len(rest) {
		groups = append(groups, rest[offset:])
	}

	formatted := "+" + countryCode
	if len(groups) > 0 {
		formatted += " " + strings.Join(groups, " ")
	}
	return formatted
}

// Display is the stored display form of a raw phone: Pretty, or "+digits"
// when pretty formatting yields nothing usable.
func Display(raw string) string {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}
	if pretty := Pretty(digits); pretty != "" {
		return pretty
	}
	return "+" + digits
}

// Same reports whether two raw phone strings carry the same digits.
// Empty numbers never match.
func Same(a, b string) bool {
	da := Digits(a)
	return da != "" && da == Digits(b)
}

// NormalizeE164 formats a phone number to E.164 using region as the default
// region for numbers without a country prefix. If parsing fails, it returns
// "+" followed by the digits.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = defaultRegion
	}

	candidate := trimmed
	if !strings.HasPrefix(candidate, "+") && !strings.HasPrefix(candidate, "00") {
		// Stored numbers are digit keys that already include the country code.
		candidate = "+" + Digits(candidate)
	}

	number, err := phonenumbers.Parse(candidate, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "+" + Digits(trimmed)
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
