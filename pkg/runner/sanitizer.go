package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 64KB, enough for an event carrying a whole form.
	DefaultMaxInputSize = 64 * 1024
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "CANOPY_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput cleans a raw event line by enforcing the size limit,
// validating UTF-8, and stripping dangerous control characters.
func SanitizeInput(input string) (string, error) {
	limit := MaxInputSize()
	if len(input) > limit {
		// Rejected, never truncated: a truncated payload could still decode.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	return stripControl(input), nil
}

// SanitizeValue strips control characters from every string inside a decoded
// payload (maps, slices and map keys included). Other values are returned as is.
func SanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return stripControl(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[stripControl(k)] = SanitizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = SanitizeValue(e)
		}
		return out
	default:
		return v
	}
}

// SanitizeMap is SanitizeValue for the maps of an auxiliary context.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return SanitizeValue(m).(map[string]any)
}

// stripControl keeps newline, tab and carriage return; ESC, NUL, BEL and the
// other control characters are removed.
func stripControl(input string) string {
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// MaxInputSize returns the configured limit in bytes.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
