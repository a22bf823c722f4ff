package auth

import (
	"strings"
	"testing"
)

func TestScorePassword(t *testing.T) {
	cases := map[string]struct {
		password string
		valid    bool
		score    int
		problems int
	}{
		"strong with all bonuses": {
			// 12+ chars, 2+ of every class
			password: "Password123!!",
			valid:    true,
			score:    100,
			problems: 0,
		},
		"valid minimal": {
			password: "Abcdef1!",
			valid:    true,
			score:    100, // base 100 + lower>=2 bonus, capped
			problems: 0,
		},
		"too short": {
			password: "Ab1!",
			valid:    false,
			score:    80,
			problems: 1,
		},
		"missing uppercase and symbol": {
			password: "abcdefg123",
			valid:    false,
			score:    70, // length, lower, digit + two repeat bonuses
			problems: 2,
		},
		"weak": {
			password: "abc",
			valid:    false,
			score:    25,
			problems: 4,
		},
		"empty": {
			password: "",
			valid:    false,
			score:    0,
			problems: 5,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := scorePassword(tc.password, 8)
			if got.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v (%+v)", got.Valid, tc.valid, got)
			}
			if got.Score != tc.score {
				t.Fatalf("score = %d, want %d (%+v)", got.Score, tc.score, got)
			}
			if len(got.Errors) != tc.problems {
				t.Fatalf("problems = %v, want %d of them", got.Errors, tc.problems)
			}
		})
	}
}

func TestScorePasswordRespectsMinLength(t *testing.T) {
	got := scorePassword("Abcdef1!", 12)
	if got.Valid {
		t.Fatal("8-char password valid under a 12-char minimum")
	}
	if len(got.Errors) != 1 || !strings.Contains(got.Errors[0], "12") {
		t.Fatalf("unexpected problems: %v", got.Errors)
	}
}

func TestScorePasswordCapsAtHundred(t *testing.T) {
	got := scorePassword("AAbbcc1122!!??", 8)
	if got.Score != 100 {
		t.Fatalf("score = %d, want cap of 100", got.Score)
	}
}
