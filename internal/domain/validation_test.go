package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	valid := []string{
		"a@b.co",
		"visitor@example.com",
		"first.last+tag@sub.example.org",
	}
	for _, email := range valid {
		assert.True(t, ValidEmail(email), email)
	}

	invalid := []string{
		"",
		"a@b",            // 无 TLD
		"no-at.example",  // 无 @
		"white space@example.com",
		"@example.com",
		"user@.com",
		strings.Repeat("a", 250) + "@b.co", // 超长
	}
	for _, email := range invalid {
		assert.False(t, ValidEmail(email), email)
	}
}

func TestContactRequestValidate(t *testing.T) {
	base := ContactRequest{
		Name:     "Visitor",
		Email:    "visitor@example.com",
		Message:  "hello there",
		BotToken: "tok",
	}

	assert.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*ContactRequest)
		want   error
	}{
		{"empty name", func(r *ContactRequest) { r.Name = "" }, ErrInvalidName},
		{"name too long", func(r *ContactRequest) { r.Name = strings.Repeat("x", 101) }, ErrInvalidName},
		{"bad email", func(r *ContactRequest) { r.Email = "nope" }, ErrInvalidEmail},
		{"empty message", func(r *ContactRequest) { r.Message = "" }, ErrInvalidMessage},
		{"message too long", func(r *ContactRequest) { r.Message = strings.Repeat("x", 4001) }, ErrInvalidMessage},
		{"missing bot token", func(r *ContactRequest) { r.BotToken = "" }, ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			assert.ErrorIs(t, req.Validate(), tt.want)
		})
	}
}

func TestFinalSubject(t *testing.T) {
	r := ContactRequest{Subject: "Hello"}
	assert.Equal(t, "Hello", r.FinalSubject("default"))

	r.Subject = ""
	assert.Equal(t, "default", r.FinalSubject("default"))

	r.Subject = strings.Repeat("s", 121)
	assert.Equal(t, "default", r.FinalSubject("default"))

	r.Subject = "   "
	assert.Equal(t, "default", r.FinalSubject("default"))
}
