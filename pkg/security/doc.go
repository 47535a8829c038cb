// Package security provides validation, sanitization, and limits for the
// job queue: command name and queue name rules, related-entity
// identifier validation, error-output sanitization, and retry-count
// clamping.
package security
