package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// typeTagRegex matches valid type tags: dot separated Go-style identifiers,
// optionally prefixed by an import-path-like qualifier ("github.com/x/y.Shape").
var typeTagRegex = regexp.MustCompile(`^([A-Za-z0-9_.\-]+/)*[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidateTypeTag validates a type tag used in the wire envelope.
//
// The validation rules are intentionally conservative:
//   - No empty tags
//   - Maximum length of 256 characters
//   - No reserved '@' prefix (used by envelope keys)
//   - Identifier segments separated by dots, optional path qualifier
func ValidateTypeTag(tag string) error {
	if tag == "" {
		return New(ErrCodeInvalidTag, "type tag cannot be empty")
	}

	if len(tag) > 256 {
		return New(ErrCodeInvalidTag, "type tag too long (max 256 characters)")
	}

	if strings.HasPrefix(tag, "@") {
		return New(ErrCodeInvalidTag, "type tag cannot start with '@': %q", tag)
	}

	if !typeTagRegex.MatchString(tag) {
		return New(ErrCodeInvalidTag, "invalid type tag: %q", tag)
	}

	return nil
}

// formatNameRegex matches format engine names (json, yaml, cbor, jsonc, ...).
var formatNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// ValidateFormatName validates the name a format engine is registered under.
func ValidateFormatName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidFormat, "format name cannot be empty")
	}

	if !formatNameRegex.MatchString(name) {
		return New(ErrCodeInvalidFormat, "invalid format name: %q", name)
	}

	return nil
}

// ValidateKey validates a document store key for safety.
// It rejects keys that could be used for path traversal or injection attacks.
//
// Validation rules:
//   - Key cannot be empty
//   - Maximum length of 256 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes
func ValidateKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidKey, "key cannot be empty")
	}

	if len(key) > 256 {
		return New(ErrCodeInvalidKey, "key too long (max 256 characters)")
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidKey, "key contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(key, pattern) {
			return New(ErrCodeInvalidKey, "key contains invalid characters: %q", pattern)
		}
	}

	return nil
}
