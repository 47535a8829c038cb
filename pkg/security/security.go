// Package security provides validation, sanitization, and limits for the job queue.
package security

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/levuro/jobqueue/pkg/core"
)

// Security limits and configuration
const (
	// MaxCommandLength is the maximum length for a job's command string.
	MaxCommandLength = 255

	// MaxJobArgsSize is the maximum size in bytes for job arguments (1MB).
	MaxJobArgsSize = 1 << 20

	// MaxRetries is the hard limit for retry attempts.
	MaxRetries = 100

	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096

	// MaxQueueNameLength is the maximum length for queue names.
	MaxQueueNameLength = 255
)

// validQueueName matches alphanumeric, hyphens, underscores, and dots.
var validQueueName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateQueueName validates a queue name.
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validQueueName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateCommand validates a job's command string. Unlike the queue
// name, a command is an opaque invocation label — only emptiness and
// length are enforced, matching spec §3's "non-empty string" invariant.
func ValidateCommand(command string) error {
	if command == "" {
		return core.ErrEmptyCommand
	}
	if len(command) > MaxCommandLength {
		return fmt.Errorf("jobs: command longer than %d bytes", MaxCommandLength)
	}
	return nil
}

// ValidateRelatedID validates a related-entity identifier: it must
// decode as a non-empty JSON object, per spec §7 InvalidArgument.
func ValidateRelatedID(idJSON string) error {
	if idJSON == "" {
		return core.ErrInvalidRelatedID
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(idJSON), &m); err != nil || len(m) == 0 {
		return core.ErrInvalidRelatedID
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines,
	// carriage returns and tabs).
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures a maxRetries value is within limits.
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}
