package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"Valid", "CorrectHorse7!", ""},
		{"Minimum Length", "Abcdefghij1!", ""},
		{"Maximum Length", "Aa1!" + strings.Repeat("x", 124), ""},
		{"Too Short", "Short1!", "at least 12 characters"},
		{"Too Long", "Aa1!" + strings.Repeat("x", 125), "not exceed 128 characters"},
		{"Missing Uppercase", "correcthorse7!", "uppercase letter"},
		{"Missing Lowercase", "CORRECTHORSE7!", "lowercase letter"},
		{"Missing Digit", "CorrectHorse!!", "digit"},
		{"Missing Special", "CorrectHorse77", "special character"},
		{"Non ASCII Letters", "ÜberSicher99?!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "river_42", false},
		{"Minimum Length", "abc", false},
		{"Too Short", "ab", true},
		{"Too Long", strings.Repeat("a", 31), true},
		{"Space", "river 42", true},
		{"Punctuation", "river.42", true},
		{"Leading Underscore", "_river", true},
		{"Trailing Underscore", "river_", true},
		{"Interior Underscores", "ri__ver", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "river@example.com", false},
		{"Subdomain", "river@mail.example.co.uk", false},
		{"Plus Tag", "river+tag@example.com", false},
		{"No At Sign", "river.example.com", true},
		{"No Domain", "river@", true},
		{"No TLD", "river@example", true},
		{"Double At", "river@@example.com", true},
		{"Embedded Space", "riv er@example.com", true},
		{"Over Length Limit", strings.Repeat("a", 250) + "@x.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
