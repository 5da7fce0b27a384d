package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/weft/pkg/errors"
)

// ValueError is the structured failure reported by Flatten and Unflatten.
// Path is the accessor chain from the root to the offending value, e.g.
// `.foo.array[0]` or `.m.get("key")`. Value is the offending value itself
// and Root the document the operation started from.
type ValueError struct {
	Message string
	Path    string
	Value   any
	Root    any

	cause *errors.Error
}

func newValueError(code errors.Code, path string, value, root any, format string, args ...any) *ValueError {
	msg := fmt.Sprintf(format, args...)
	return &ValueError{
		Message: msg,
		Path:    path,
		Value:   value,
		Root:    root,
		cause:   errors.New(code, "%s", msg),
	}
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s (at %s)", e.cause.Error(), e.Path)
	}
	return e.cause.Error()
}

// Unwrap exposes the underlying coded error for errors.Is/As matching.
func (e *ValueError) Unwrap() error {
	return e.cause
}

// Code returns the machine-readable error code.
func (e *ValueError) Code() errors.Code {
	return e.cause.Code
}

// =============================================================================
// Path construction
// =============================================================================

// pathSegment formatting mirrors JavaScript accessor syntax: identifier keys
// render as .key, other keys as ["key"], list indices as [0], and ordered-map
// value lookups as .get("key").

func segmentKey(key string) string {
	if isIdentifier(key) {
		return "." + key
	}
	return "[" + strconv.Quote(key) + "]"
}

func segmentIndex(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func segmentMapKey(i int) string {
	return ".key(" + strconv.Itoa(i) + ")"
}

func segmentMapValue(key any) string {
	if s, ok := key.(string); ok {
		return ".get(" + strconv.Quote(s) + ")"
	}
	return ".get(" + fmt.Sprintf("%v", key) + ")"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// joinPath renders a segment stack into one accessor string.
func joinPath(segments []string) string {
	return strings.Join(segments, "")
}
