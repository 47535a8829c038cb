package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommand_Valid(t *testing.T) {
	valid := []string{"send-email", "processOrder", "task_1", "echo hi"}
	for _, c := range valid {
		assert.NoError(t, ValidateCommand(c), "expected %q to be valid", c)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	assert.Error(t, ValidateCommand(""))
	assert.Error(t, ValidateCommand(strings.Repeat("a", 300)))
}

func TestValidateQueueName_Valid(t *testing.T) {
	validNames := []string{
		"default",
		"high-priority",
		"emails_v2",
	}

	for _, name := range validNames {
		err := ValidateQueueName(name)
		assert.NoError(t, err, "Expected %q to be valid", name)
	}
}

func TestValidateQueueName_Invalid(t *testing.T) {
	invalidNames := []string{
		"",
		"queue with spaces",
		strings.Repeat("q", 300),
	}

	for _, name := range invalidNames {
		err := ValidateQueueName(name)
		assert.Error(t, err, "Expected %q to be invalid", name)
	}
}

func TestValidateRelatedID(t *testing.T) {
	assert.NoError(t, ValidateRelatedID(`{"id":42}`))
	assert.Error(t, ValidateRelatedID(""))
	assert.Error(t, ValidateRelatedID(`{}`))
	assert.Error(t, ValidateRelatedID(`not json`))
	assert.Error(t, ValidateRelatedID(`[1,2,3]`))
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "normal message",
			input:    "connection refused",
			expected: "connection refused",
		},
		{
			name:     "message with newlines",
			input:    "error on\nline 2",
			expected: "error on\nline 2",
		},
		{
			name:     "message with null bytes",
			input:    "error\x00with\x00nulls",
			expected: "errorwithnulls",
		},
		{
			name:     "empty message",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeErrorMessage(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSanitizeErrorMessage_Truncation(t *testing.T) {
	longMessage := strings.Repeat("a", 5000)
	result := SanitizeErrorMessage(longMessage)

	assert.LessOrEqual(t, len(result), MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(result, "..."))
}

func TestClampRetries(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{-1, 0},
		{0, 0},
		{5, 5},
		{50, 50},
		{100, 100},
		{101, 100},
		{1000, 100},
	}

	for _, tt := range tests {
		result := ClampRetries(tt.input)
		assert.Equal(t, tt.expected, result, "ClampRetries(%d)", tt.input)
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, 255, MaxCommandLength)
	assert.Equal(t, 1<<20, MaxJobArgsSize) // 1MB
	assert.Equal(t, 100, MaxRetries)
	assert.Equal(t, 4096, MaxErrorMessageLength)
	assert.Equal(t, 255, MaxQueueNameLength)
}
