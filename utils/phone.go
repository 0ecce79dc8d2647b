package utils

import (
	"regexp"
	"strings"

	"github.com/gadar/bestrong/config"
)

var phoneCleanRe = regexp.MustCompile(`[^\d+]`)

// NormalizePhone canonicalizes a phone number to E.164 so the same user is
// always matched regardless of input formatting. Bare local numbers get the
// configured default country code prefixed.
func NormalizePhone(phone string) string {
	s := phoneCleanRe.ReplaceAllString(strings.TrimSpace(phone), "")
	if strings.HasPrefix(s, "+") {
		s = "+" + strings.ReplaceAll(s[1:], "+", "")
	} else {
		s = strings.ReplaceAll(s, "+", "")
	}
	if s == "" {
		return ""
	}

	cfg := config.Get()
	cc := strings.TrimPrefix(cfg.DefaultCountry, "+")

	// "237699..." -> "+237699..."
	if cc != "" && strings.HasPrefix(s, cc) && !strings.HasPrefix(s, "+") {
		return "+" + s
	}
	// local number without any country code
	if !strings.HasPrefix(s, "+") {
		return cfg.DefaultCountry + s
	}
	return s
}

// ComposePhone joins a country code and a local number, then normalizes. A
// local number that already carries a country code wins over the country
// argument.
func ComposePhone(country, phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+") {
		return NormalizePhone(phone)
	}
	if country != "" && !strings.HasPrefix(country, "+") {
		country = "+" + country
	}
	return NormalizePhone(country + phone)
}
