package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "normal ascii", email: "valid@gmail.com", expected: "va****@gmail.com"},
		{name: "empty", email: "", expected: ""},
		{name: "local too short", email: "ab@b.c", expected: "ab@b.c"},
		{name: "threshold", email: "abc@domain.com", expected: "ab****@domain.com"},
		{name: "cyrillic local", email: "абвгд@пример.рф", expected: "аб****@пример.рф"},
		{name: "surrounding whitespace", email: "   elise@example.com   ", expected: "el****@example.com"},
		{name: "no at", email: "nonsense", expected: "nonsense"},
		{name: "at at start", email: "@example.com", expected: "@example.com"},
		{name: "at at end", email: "local@", expected: "local@"},
		{name: "multiple ats", email: "first@second@domain.com", expected: "fi****@second@domain.com"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, RedactEmail(tc.email))
		})
	}
}

func TestRedactUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		username string
		expected string
	}{
		{username: "", expected: ""},
		{username: "a", expected: "a"},
		{username: "ab", expected: "ab"},
		{username: "abc", expected: "ab****"},
		{username: "John42", expected: "Jo****"},
		{username: "пользователь", expected: "по****"},
		{username: "  user  ", expected: "us****"},
	}

	for _, tc := range tests {
		t.Run(tc.username, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, RedactUsername(tc.username))
		})
	}
}

func TestRedactKeepPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", RedactKeepPrefix("abc", 3))
	assert.Equal(t, "abc****", RedactKeepPrefix("abcd", 3))
	assert.Equal(t, "spa****", RedactKeepPrefix("  spaced  ", 3))
	assert.Equal(t, "short", RedactKeepPrefix("short", 10))
	assert.Equal(t, "****", RedactKeepPrefix("secret", 0))
}
