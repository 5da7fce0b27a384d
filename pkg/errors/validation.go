package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateTagName validates a custom type-tag name for safety and correctness.
// Tag names appear verbatim in the wire format, so the rules are intentionally
// conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No whitespace anywhere in the name
//   - Maximum length of 128 characters
//
// Collision with the built-in tag catalog is checked separately by the codec
// registry, which owns the built-in set.
func ValidateTagName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidTag, "tag name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidTag, "tag name too long (max 128 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidTag, "tag name contains control characters")
		}
		if unicode.IsSpace(r) {
			return New(ErrCodeInvalidTag, "tag name contains whitespace: %q", name)
		}
	}

	return nil
}

// recordKeyDenylist contains keys that would collide with special object
// properties when the decoded document is later consumed by a JavaScript
// runtime. Accepting them on decode would let a hostile document smuggle
// behavior-changing properties into plain records.
var recordKeyDenylist = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// ValidateRecordKey validates a plain-record key from a decoded document.
// Keys must be non-empty strings without null bytes and must not name a
// prototype-polluting special property.
func ValidateRecordKey(key string) error {
	if strings.ContainsRune(key, '\x00') {
		return New(ErrCodeInvalidKey, "record key contains null byte")
	}
	if recordKeyDenylist[key] {
		return New(ErrCodeProtoKey, "record key %q is forbidden", key)
	}
	return nil
}

// tagNameRegex matches the recommended shape for custom tag names: an
// identifier-like token, optionally namespaced with dots.
var tagNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)*$`)

// ValidateStrictTagName validates a tag name against the recommended
// identifier shape in addition to the base safety rules. The codec itself only
// requires ValidateTagName; this stricter check is offered for callers that
// want wire-friendly names.
func ValidateStrictTagName(name string) error {
	if err := ValidateTagName(name); err != nil {
		return err
	}

	if !tagNameRegex.MatchString(name) {
		return New(ErrCodeInvalidTag, "tag name is not identifier-shaped: %q", name)
	}

	return nil
}
