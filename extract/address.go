package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Address formats seen on cards:
//
//	"Street, City (75011)"          resale listings
//	"Program Name, City (92100)"    new-construction programs
//
// The postal code sits in parentheses; the program name, when present, is
// the leading comma segment and never starts with a digit (street numbers do).
var (
	reParenPostal = regexp.MustCompile(`\((\d{5})\)`)
	reCityBefore  = regexp.MustCompile(`,\s*([^,]+?)\s*\(`)
)

// parseAddress splits a raw card address into city, postal code, and
// program name. Any piece that cannot be identified is returned empty.
func parseAddress(addr string) (city, postal, program string) {
	if m := reParenPostal.FindStringSubmatch(addr); m != nil {
		postal = m[1]
	}
	if m := reCityBefore.FindStringSubmatch(addr); m != nil {
		city = strings.TrimSpace(m[1])
	}
	if i := strings.Index(addr, ","); i > 0 {
		lead := strings.TrimSpace(addr[:i])
		if lead != "" && !startsWithDigit(lead) {
			program = lead
		}
	}
	if city == "" && postal == "" {
		// No recognizable structure; fall back to a bare 5-digit scan so
		// at least the postal code survives.
		if m := rePostal.FindString(addr); m != "" {
			postal = m
		}
	}
	return city, postal, program
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}
