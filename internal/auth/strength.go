package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const passwordSymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// StrengthReport is the outcome of scoring a candidate password.
// Valid depends only on the five base rules; a password can collect bonus
// points and still be invalid because a required character class is missing.
type StrengthReport struct {
	Valid  bool     `json:"valid"`
	Score  int      `json:"score"`
	Errors []string `json:"errors,omitempty"`
}

// scorePassword awards 20 points per satisfied base rule (minimum length,
// uppercase, lowercase, digit, symbol) and up to 25 bonus points for length
// >= 12 and for each class appearing at least twice, capped at 100.
func scorePassword(password string, minLength int) StrengthReport {
	var upper, lower, digit, symbol int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digit++
		case strings.ContainsRune(passwordSymbols, r):
			symbol++
		}
	}

	report := StrengthReport{}
	length := len([]rune(password))

	base := []struct {
		ok      bool
		problem string
	}{
		{length >= minLength, fmt.Sprintf("must be at least %d characters long", minLength)},
		{upper > 0, "must contain an uppercase letter"},
		{lower > 0, "must contain a lowercase letter"},
		{digit > 0, "must contain a digit"},
		{symbol > 0, "must contain a symbol"},
	}
	report.Valid = true
	for _, rule := range base {
		if rule.ok {
			report.Score += 20
			continue
		}
		report.Valid = false
		report.Errors = append(report.Errors, rule.problem)
	}

	for _, bonus := range []bool{length >= 12, upper >= 2, lower >= 2, digit >= 2, symbol >= 2} {
		if bonus {
			report.Score += 5
		}
	}
	if report.Score > 100 {
		report.Score = 100
	}
	return report
}
